package search

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/internal/modules/board/render"
	gate "anoa.com/classboard/internal/modules/gate/service"
	"anoa.com/classboard/pkg/apperror"
)

const (
	DefaultLimit = 20
	maxQueryLen  = 100

	msgEmptyQuery = "검색어를 입력해주세요."
	msgLongQuery  = "검색어가 너무 깁니다."
)

// Document is one board item as stored in the index.
type Document struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Author    string `json:"author"`
	ImageURL  string `json:"image_url,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Backend is the search engine. Query only returns documents whose
// category is listed.
type Backend interface {
	Add(docs []Document) error
	Query(q string, categories []string, limit int) ([]Document, error)
}

type Result struct {
	ID       string    `json:"id"`
	Category string    `json:"category"`
	Title    string    `json:"title"`
	Snippet  string    `json:"snippet"`
	Author   string    `json:"author"`
	ImageURL string    `json:"image_url,omitempty"`
	Date     time.Time `json:"date"`
}

type SearchService interface {
	// Index records items fetched for category. Optimistic copies are
	// skipped; they are indexed once the reload returns them.
	Index(ctx context.Context, category entity.Category, items []entity.BoardItem)
	Search(ctx context.Context, sess entity.Session, q string) ([]Result, error)
}

type searchService struct {
	backend Backend
}

// NewSearchService returns a service over backend. A nil backend
// disables search: nothing is indexed and every query is empty.
func NewSearchService(backend Backend) SearchService {
	return &searchService{backend: backend}
}

func (s *searchService) Index(_ context.Context, category entity.Category, items []entity.BoardItem) {
	if s.backend == nil {
		return
	}

	docs := make([]Document, 0, len(items))
	for _, it := range items {
		if it.Fresh {
			continue
		}
		id := it.ID
		if id == "" {
			id = it.DeriveID()
		}
		docs = append(docs, Document{
			ID:        id,
			Category:  category.String(),
			Title:     render.PlainText(it.Title),
			Body:      render.PlainText(it.Body),
			Author:    it.Author,
			ImageURL:  it.ImageURL,
			CreatedAt: it.CreatedAt.Unix(),
		})
	}
	if err := s.backend.Add(docs); err != nil {
		log.Printf("[search] index %s (%d items): %v", category, len(docs), err)
	}
}

func (s *searchService) Search(_ context.Context, sess entity.Session, q string) ([]Result, error) {
	decision := gate.CanView(sess, gate.SurfaceSearch)
	if !decision.Visible {
		return nil, apperror.ErrLocked
	}

	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperror.New(http.StatusBadRequest, msgEmptyQuery, apperror.ErrInvalidInput)
	}
	if utf8.RuneCountInString(q) > maxQueryLen {
		return nil, apperror.New(http.StatusBadRequest, msgLongQuery, apperror.ErrInvalidInput)
	}

	var allowed []string
	for _, c := range entity.AllCategories {
		if gate.CanView(sess, gate.ReadSurface(c)).Visible {
			allowed = append(allowed, c.String())
		}
	}
	if s.backend == nil || len(allowed) == 0 {
		return []Result{}, nil
	}

	docs, err := s.backend.Query(q, allowed, DefaultLimit)
	if err != nil {
		return nil, apperror.Wrap(apperror.ErrInternal, "검색에 실패했습니다.")
	}

	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		if !contains(allowed, d.Category) {
			continue
		}
		results = append(results, Result{
			ID:       d.ID,
			Category: d.Category,
			Title:    d.Title,
			Snippet:  render.Snippet(d.Body),
			Author:   d.Author,
			ImageURL: d.ImageURL,
			Date:     time.Unix(d.CreatedAt, 0),
		})
	}
	return results, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
