package dto

import (
	"anoa.com/classboard/internal/entity"
	gate "anoa.com/classboard/internal/modules/gate/service"
)

type LoginRequest struct {
	ID       string `json:"id" validate:"required,studentid"`
	Password string `json:"pw" validate:"required,min=4,max=64"`
	Remember bool   `json:"remember"`
}

type SignupRequest struct {
	ID       string `json:"id" validate:"required,studentid"`
	Password string `json:"pw" validate:"required,min=4,max=64"`
	Name     string `json:"name" validate:"required,max=20"`
}

type AuthResponse struct {
	Message string         `json:"message"`
	Session entity.Session `json:"session"`
}

// SessionResponse is everything the browser needs to draw the shell:
// who is signed in, what each surface shows, and which boards have news.
type SessionResponse struct {
	Session      entity.Session                 `json:"session"`
	Surfaces     map[gate.Surface]gate.Decision `json:"surfaces"`
	Unread       map[string]bool                `json:"unread"`
	RememberedID string                         `json:"remembered_id,omitempty"`
}
