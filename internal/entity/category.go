package entity

import (
	"fmt"
	"strings"
)

// Category is the closed set of boards the site renders.
type Category int

const (
	CategoryCommunity Category = iota + 1
	CategoryNotice
	CategoryGallery
)

// PagingMode tells the renderer how a board is paged.
type PagingMode int

const (
	PagingFixed PagingMode = iota + 1
	PagingIncremental
)

type categoryInfo struct {
	slug       string
	listParam  string
	legacyType string
	paging     PagingMode
}

var categories = map[Category]categoryInfo{
	CategoryCommunity: {slug: "community", listParam: "Community", legacyType: "Post", paging: PagingFixed},
	CategoryNotice:    {slug: "notice", listParam: "Notice", legacyType: "Notice", paging: PagingFixed},
	CategoryGallery:   {slug: "gallery", listParam: "Gallery", legacyType: "Gallery", paging: PagingIncremental},
}

// AllCategories lists every board in display order.
var AllCategories = []Category{CategoryCommunity, CategoryNotice, CategoryGallery}

// ParseCategory accepts the route slug as well as every spelling the
// backend has used ("Post", "Community", "notice", ...).
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for c, info := range categories {
		if key == info.slug || key == strings.ToLower(info.listParam) || key == strings.ToLower(info.legacyType) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// String returns the slug used in routes and storage keys.
func (c Category) String() string {
	if info, ok := categories[c]; ok {
		return info.slug
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ListParam is the value for ?action=list&category=.
func (c Category) ListParam() string {
	return categories[c].listParam
}

// LegacyType is the value for ?type= and the Type field of POST bodies.
func (c Category) LegacyType() string {
	return categories[c].legacyType
}

func (c Category) Paging() PagingMode {
	return categories[c].paging
}

// StorageKey namespaces a durable storage key by category, e.g. "last_read:notice".
func (c Category) StorageKey(prefix string) string {
	return prefix + ":" + c.String()
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
