package entity

import (
	"time"

	"github.com/google/uuid"
)

// AnonymousAuthor is shown when the backend omits the author column.
const AnonymousAuthor = "익명"

var boardItemNamespace = uuid.MustParse("6f1c1c2e-3b0f-4f6a-9d53-0c7d2b8f4a10")

type BoardItem struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ImageURL  string    `json:"image_url,omitempty"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	Fresh     bool      `json:"is_freshly_created"`
}

// DeriveID gives an item a stable id from its content so the same row
// fetched twice indexes to the same search document.
func (b BoardItem) DeriveID() string {
	name := b.Category.String() + "\x00" + b.Title + "\x00" + b.Author + "\x00" + b.CreatedAt.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(boardItemNamespace, []byte(name)).String()
}
