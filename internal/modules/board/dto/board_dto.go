package dto

import (
	"anoa.com/classboard/internal/modules/board/render"
	gate "anoa.com/classboard/internal/modules/gate/service"
)

type BoardURI struct {
	Category string `uri:"category" binding:"required"`
}

type ItemURI struct {
	Category string `uri:"category" binding:"required"`
	Index    int    `uri:"index" binding:"min=0"`
}

type PageQuery struct {
	Page int `form:"page" binding:"omitempty,min=1"`
}

// SubmitRequest is a new board item. Image is base64, either bare or as a
// data URL; it is only read for the gallery.
type SubmitRequest struct {
	Title    string `json:"title" validate:"required,bytemax=30"`
	Body     string `json:"body" validate:"bytemax=3000"`
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
}

// BoardView is one rendered board. Fixed-page boards fill Page, the
// gallery fills Chunk.
type BoardView struct {
	Category        string        `json:"category"`
	Decision        gate.Decision `json:"decision"`
	WriteDecision   gate.Decision `json:"write_decision"`
	Page            *render.Page  `json:"page,omitempty"`
	Chunk           *render.Chunk `json:"chunk,omitempty"`
	ProfileImageURL string        `json:"profile_image_url,omitempty"`
}

type SubmitResponse struct {
	Message string      `json:"message"`
	Item    render.Card `json:"item"`
	View    *BoardView  `json:"view"`
}
