package handler

import "github.com/livequestions/ama-api/internal/core/domain"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type askRequest struct {
	Text string `json:"text" validate:"required,notblank,max=1000"`
	// Author defaults to the session name; when given it must match it.
	Author string `json:"author" validate:"omitempty,max=100"`
}

type voteRequest struct {
	// Voter defaults to the session name; when given it must match it.
	Voter string `json:"voter" validate:"omitempty,max=100"`
}

type questionListResponse struct {
	Data []domain.Question `json:"data"`
}

// askResponse carries the updated ranking plus the question just created.
type askResponse struct {
	Data     []domain.Question `json:"data"`
	Question domain.Question   `json:"question"`
}

type loginRequest struct {
	Name     string `json:"name"     validate:"required,notblank,max=100"`
	Password string `json:"password" validate:"omitempty,max=200"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}
