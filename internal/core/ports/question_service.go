package ports

import (
	"context"

	"github.com/livequestions/ama-api/internal/core/domain"
)

// AskInput carries a question submission from the transport layer.
type AskInput struct {
	Text   string
	Author string
	// IdempotencyKey is optional; a repeated key returns the original question.
	IdempotencyKey string
}

// QuestionService is the use-case surface the HTTP layer talks to. Every
// mutation is applied optimistically to the local view before the store
// confirms it; Questions always returns the current ranked view.
type QuestionService interface {
	Questions() []domain.Question
	SubmitQuestion(ctx context.Context, in AskInput) (domain.Question, error)
	SubmitVote(ctx context.Context, questionID, voter string) error
	SubmitMarkAnswered(ctx context.Context, who domain.Identity, questionID string) error
	SubmitDelete(ctx context.Context, who domain.Identity, questionID string) error
	SubmitDeleteAll(ctx context.Context, who domain.Identity) error
}
