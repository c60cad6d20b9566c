// Package render turns cached boards into what the browser draws. Every
// text field it returns is plain text with markup stripped; clients set it
// as text, never as HTML.
package render

import (
	"html"
	"strings"

	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/internal/modules/board/cache"
	gate "anoa.com/classboard/internal/modules/gate/service"
	"anoa.com/classboard/pkg/apperror"
	"github.com/microcosm-cc/bluemonday"
)

const (
	PageSize           = 5
	ChunkSize          = 12
	SnippetRunes       = 40
	LockedPlaceholders = 5
)

const dateLayout = "2006-01-02"

var policy = bluemonday.StrictPolicy()

// Card is one list entry. Placeholder cards carry no item text and
// cannot be opened.
type Card struct {
	Index       int    `json:"index"`
	ID          string `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Author      string `json:"author,omitempty"`
	Date        string `json:"date,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Fresh       bool   `json:"is_freshly_created,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
	Activatable bool   `json:"activatable"`
}

type Controls struct {
	Prev    bool  `json:"prev"`
	Pages   []int `json:"pages"`
	Next    bool  `json:"next"`
	Current int   `json:"current"`
	Last    int   `json:"last"`
}

type Page struct {
	Category entity.Category `json:"category"`
	Cards    []Card          `json:"cards"`
	Controls Controls        `json:"controls"`
	Locked   bool            `json:"locked"`
	Reason   gate.Reason     `json:"reason"`
	Failed   bool            `json:"failed"`
	Stale    bool            `json:"stale"`
	Total    int             `json:"total"`
}

type Chunk struct {
	Category entity.Category `json:"category"`
	Cards    []Card          `json:"cards"`
	Revealed int             `json:"revealed"`
	Total    int             `json:"total"`
	HasMore  bool            `json:"has_more"`
	Locked   bool            `json:"locked"`
	Reason   gate.Reason     `json:"reason"`
	Failed   bool            `json:"failed"`
	Stale    bool            `json:"stale"`
}

type Detail struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Author   string `json:"author"`
	Date     string `json:"date"`
	ImageURL string `json:"image_url,omitempty"`
	Fresh    bool   `json:"is_freshly_created"`
}

// LastPage is ceil(total/PageSize).
func LastPage(total int) int {
	return (total + PageSize - 1) / PageSize
}

// ClampPage keeps n within 1..LastPage, treating an empty board as one
// page.
func ClampPage(n, total int) int {
	last := LastPage(total)
	if last < 1 {
		last = 1
	}
	if n < 1 {
		return 1
	}
	if n > last {
		return last
	}
	return n
}

// RenderPage renders page n of a fixed-page board: items
// [(n-1)*PageSize, n*PageSize) in cache order.
func RenderPage(category entity.Category, state cache.State, n int, decision gate.Decision) Page {
	items := state.Items
	n = ClampPage(n, len(items))
	last := LastPage(len(items))

	start := (n - 1) * PageSize
	end := min(start+PageSize, len(items))

	out := Page{
		Category: category,
		Locked:   !decision.Visible,
		Reason:   decision.Reason,
		Failed:   state.Failed,
		Stale:    state.Stale,
		Total:    len(items),
		Controls: Controls{
			Prev:    n > 1,
			Pages:   make([]int, 0, last),
			Next:    n < last,
			Current: n,
			Last:    last,
		},
	}
	for p := 1; p <= last; p++ {
		out.Controls.Pages = append(out.Controls.Pages, p)
	}

	out.Cards = cards(items, start, end, out.Locked)
	return out
}

// RevealNext exposes the next ChunkSize gallery items after revealed and
// returns only the newly exposed ones.
func RevealNext(category entity.Category, state cache.State, revealed int, decision gate.Decision) Chunk {
	items := state.Items
	revealed = max(0, min(revealed, len(items)))
	end := min(revealed+ChunkSize, len(items))

	out := Chunk{
		Category: category,
		Revealed: end,
		Total:    len(items),
		HasMore:  end < len(items),
		Locked:   !decision.Visible,
		Reason:   decision.Reason,
		Failed:   state.Failed,
		Stale:    state.Stale,
	}
	if revealed == 0 || revealed < end {
		out.Cards = cards(items, revealed, end, out.Locked)
	} else {
		out.Cards = []Card{}
	}
	return out
}

// RenderDetail opens one item. Locked or role-restricted surfaces get
// ErrLocked instead of content.
func RenderDetail(item entity.BoardItem, index int, decision gate.Decision) (Detail, error) {
	if !decision.Visible {
		return Detail{}, apperror.ErrLocked
	}
	return Detail{
		Index:    index,
		ID:       item.ID,
		Title:    PlainText(item.Title),
		Body:     PlainText(item.Body),
		Author:   PlainText(item.Author),
		Date:     item.CreatedAt.Format(dateLayout),
		ImageURL: safeImageURL(item.ImageURL),
		Fresh:    item.Fresh,
	}, nil
}

func cards(items []entity.BoardItem, start, end int, locked bool) []Card {
	if locked && len(items) == 0 {
		out := make([]Card, LockedPlaceholders)
		for i := range out {
			out[i] = Card{Index: -1, Placeholder: true}
		}
		return out
	}

	out := make([]Card, 0, end-start)
	for i := start; i < end; i++ {
		if locked {
			out = append(out, Card{Index: i, Placeholder: true})
			continue
		}
		it := items[i]
		out = append(out, Card{
			Index:       i,
			ID:          it.ID,
			Title:       PlainText(it.Title),
			Snippet:     Snippet(it.Body),
			Author:      PlainText(it.Author),
			Date:        it.CreatedAt.Format(dateLayout),
			ImageURL:    safeImageURL(it.ImageURL),
			Fresh:       it.Fresh,
			Activatable: true,
		})
	}
	return out
}

// PlainText strips all markup and decodes entities.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(s)))
}

// Snippet is the first SnippetRunes runes of the plain text on one line.
func Snippet(s string) string {
	text := strings.Join(strings.Fields(PlainText(s)), " ")
	runes := []rune(text)
	if len(runes) <= SnippetRunes {
		return text
	}
	return string(runes[:SnippetRunes]) + "…"
}

func safeImageURL(u string) string {
	u = strings.TrimSpace(u)
	switch {
	case strings.HasPrefix(u, "https://"), strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "data:image/"):
		return u
	}
	return ""
}
