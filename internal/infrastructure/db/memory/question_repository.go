// Package memory is an in-process question table. It backs single-node and
// development deployments and is the store used by handler tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livequestions/ama-api/internal/core/domain"
	"github.com/livequestions/ama-api/internal/core/ports"
)

var _ ports.QuestionRepository = (*QuestionRepository)(nil)

// QuestionRepository serialises every mutation under one mutex, which gives
// the same per-row atomicity the durable stores provide.
type QuestionRepository struct {
	mu   sync.RWMutex
	rows map[string]domain.Question
	now  func() time.Time
}

func NewQuestionRepository() *QuestionRepository {
	return &QuestionRepository{
		rows: make(map[string]domain.Question),
		now:  time.Now,
	}
}

func (r *QuestionRepository) List(_ context.Context) ([]domain.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Question, 0, len(r.rows))
	for _, q := range r.rows {
		out = append(out, q.Clone())
	}
	return out, nil
}

func (r *QuestionRepository) Insert(_ context.Context, q domain.Question) (domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if _, exists := r.rows[q.ID]; exists {
		return domain.Question{}, domain.ErrConflict
	}
	if q.Timestamp == 0 {
		q.Timestamp = r.now().UnixMilli()
	}
	q = q.Clone()
	if q.Voters == nil {
		q.Voters = []string{}
	}
	q.Votes = len(q.Voters)

	r.rows[q.ID] = q
	return q.Clone(), nil
}

func (r *QuestionRepository) UpdateVote(_ context.Context, id, voter string) (domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.rows[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if q.HasVoter(voter) {
		return domain.Question{}, domain.ErrAlreadyVoted
	}
	q.Voters = append(slices.Clone(q.Voters), voter)
	q.Votes = len(q.Voters)

	r.rows[id] = q
	return q.Clone(), nil
}

func (r *QuestionRepository) SetAnswered(_ context.Context, id string) (domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.rows[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	q.IsAnswered = true

	r.rows[id] = q
	return q.Clone(), nil
}

func (r *QuestionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rows, id)
	return nil
}

func (r *QuestionRepository) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.rows)
	return nil
}
