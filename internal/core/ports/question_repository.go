package ports

import (
	"context"

	"github.com/livequestions/ama-api/internal/core/domain"
)

// QuestionRepository is the durable question table. It is the single source
// of truth; every in-memory view reconciles to it.
type QuestionRepository interface {
	// List returns every stored question in no particular order.
	List(ctx context.Context) ([]domain.Question, error)
	// Insert stores q, assigning an ID and Timestamp when they are empty.
	Insert(ctx context.Context, q domain.Question) (domain.Question, error)
	// UpdateVote atomically adds voter to the question's voters and increments
	// its votes. Concurrent votes from distinct voters must all land.
	// Fails with domain.ErrQuestionNotFound or domain.ErrAlreadyVoted.
	UpdateVote(ctx context.Context, id, voter string) (domain.Question, error)
	// SetAnswered flags the question answered. Fails with domain.ErrQuestionNotFound.
	SetAnswered(ctx context.Context, id string) (domain.Question, error)
	// Delete removes the question; an already deleted id is not an error.
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// ChangeFeed streams store mutations. Events are delivered at least once with
// best-effort ordering. The channel is closed when the subscription ends,
// either through the returned unsubscribe func or a broken connection.
type ChangeFeed interface {
	Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, func(), error)
}

// IdempotencyStore remembers which question an Idempotency-Key produced.
type IdempotencyStore interface {
	// Claim binds key to questionID. When the key was already bound it returns
	// the earlier question ID and claimed=false.
	Claim(ctx context.Context, key, questionID string) (existingID string, claimed bool, err error)
	Release(ctx context.Context, key string) error
}

// EventPublisher announces a store mutation to other subscribers of the
// change feed.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
}
