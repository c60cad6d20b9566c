package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/pkg/apperror"
)

// flexString accepts strings, numbers, booleans and null. Spreadsheet
// cells come back as whatever type the sheet guessed.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		return fmt.Errorf("unexpected composite value %s", preview(b))
	}
	*f = flexString(b)
	return nil
}

func (f flexString) String() string {
	return strings.TrimSpace(string(f))
}

// rawItem covers every column spelling seen so far. encoding/json matches
// keys case-insensitively, so "Title" and "title" land in the same field.
type rawItem struct {
	Title     flexString `json:"title"`
	Content   flexString `json:"content"`
	Author    flexString `json:"author"`
	Date      flexString `json:"date"`
	CreatedAt flexString `json:"createdAt"`
	Image     flexString `json:"image"`
	ImageURL  flexString `json:"imageUrl"`
	URL       flexString `json:"url"`
}

type listEnvelope struct {
	Data  []rawItem  `json:"data"`
	Items []rawItem  `json:"items"`
	Error flexString `json:"error"`
}

func decodeList(body []byte) ([]rawItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []rawItem
		if err := decodeJSON(trimmed, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}

	var env listEnvelope
	if err := decodeJSON(trimmed, &env); err != nil {
		return nil, err
	}
	if msg := env.Error.String(); msg != "" {
		return nil, fmt.Errorf("%w: backend reported %q", apperror.ErrMalformedResponse, msg)
	}
	switch {
	case env.Data != nil:
		return env.Data, nil
	case env.Items != nil:
		return env.Items, nil
	}
	return nil, fmt.Errorf("%w: no item list in response", apperror.ErrMalformedResponse)
}

func (r rawItem) toItem(category entity.Category, now time.Time) entity.BoardItem {
	item := entity.BoardItem{
		Category:  category,
		Title:     r.Title.String(),
		Body:      string(r.Content),
		Author:    r.Author.String(),
		CreatedAt: parseDate(firstNonBlank(r.Date.String(), r.CreatedAt.String()), now),
		ImageURL:  firstNonBlank(r.Image.String(), r.ImageURL.String(), r.URL.String()),
	}
	if item.Author == "" {
		item.Author = entity.AnonymousAuthor
	}
	if category == entity.CategoryGallery && item.ImageURL == "" && looksLikeImage(item.Body) {
		item.ImageURL = strings.TrimSpace(item.Body)
		item.Body = ""
	}
	item.ID = item.DeriveID()
	return item
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2006. 1. 2.",
	"2006.01.02",
}

// parseDate falls back to the start of today when the cell is empty or
// unreadable.
func parseDate(s string, now time.Time) time.Time {
	if s != "" {
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
				return t
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			if n > 1e12 {
				return time.UnixMilli(n).In(now.Location())
			}
			return time.Unix(n, 0).In(now.Location())
		}
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

func looksLikeImage(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "data:image/") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
