package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/meilisearch/meilisearch-go"
)

const IndexName = "board_items"

type meiliBackend struct {
	client meilisearch.ServiceManager
}

// NewMeiliBackend connects to host and prepares the index. A host that is
// down at startup is logged; queries will fail until it comes back.
func NewMeiliBackend(host, apiKey string) Backend {
	m := &meiliBackend{client: meilisearch.New(host, meilisearch.WithAPIKey(apiKey))}
	if _, err := m.client.Health(); err != nil {
		log.Printf("[search] meilisearch unavailable at %s: %v", host, err)
		return m
	}
	m.configure()
	return m
}

func (m *meiliBackend) configure() {
	if _, err := m.client.CreateIndex(&meilisearch.IndexConfig{Uid: IndexName, PrimaryKey: "id"}); err != nil {
		log.Printf("[search] create index %s (may already exist): %v", IndexName, err)
	}

	filterable := []interface{}{"category"}
	if _, err := m.client.Index(IndexName).UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("[search] update filterable attributes: %v", err)
	}
	sortable := []string{"created_at"}
	if _, err := m.client.Index(IndexName).UpdateSortableAttributes(&sortable); err != nil {
		log.Printf("[search] update sortable attributes: %v", err)
	}
	log.Println("[search] meilisearch index initialized")
}

func (m *meiliBackend) Add(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := m.client.Index(IndexName).AddDocuments(docs, nil)
	return err
}

func (m *meiliBackend) Query(q string, categories []string, limit int) ([]Document, error) {
	quoted := make([]string, len(categories))
	for i, c := range categories {
		quoted[i] = strconv.Quote(c)
	}

	resp, err := m.client.Index(IndexName).Search(q, &meilisearch.SearchRequest{
		Filter: fmt.Sprintf("category IN [%s]", strings.Join(quoted, ", ")),
		Limit:  int64(limit),
		Sort:   []string{"created_at:desc"},
	})
	if err != nil {
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	docs := make([]Document, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
