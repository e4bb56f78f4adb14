package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/livequestions/ama-api/internal/core/domain"
	"github.com/livequestions/ama-api/internal/core/liveview"
	"github.com/livequestions/ama-api/internal/core/ports"
	"github.com/livequestions/ama-api/internal/core/ranking"
	"github.com/livequestions/ama-api/internal/pkg/metrics"
)

const (
	maxQuestionLength = 1000
	maxNameLength     = 100
)

var _ ports.QuestionService = (*Coordinator)(nil)

// Coordinator turns user intents into an optimistic view edit followed by a
// durable store mutation, rolling the edit back when the store refuses it.
// The view lock is never held across a store or improver call.
type Coordinator struct {
	repo     ports.QuestionRepository
	improver ports.TextImprover
	idem     ports.IdempotencyStore
	view     *liveview.View
	log      zerolog.Logger

	now   func() time.Time
	newID func() string

	tsMu   sync.Mutex
	lastTS int64
}

// NewCoordinator wires a coordinator. improver and idem are optional.
func NewCoordinator(
	repo ports.QuestionRepository,
	improver ports.TextImprover,
	idem ports.IdempotencyStore,
	view *liveview.View,
	log zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		repo:     repo,
		improver: improver,
		idem:     idem,
		view:     view,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Questions returns the ranked local view.
func (c *Coordinator) Questions() []domain.Question {
	return c.view.Snapshot()
}

// SubmitVote records voter's upvote on questionID.
func (c *Coordinator) SubmitVote(ctx context.Context, questionID, voter string) error {
	questionID = strings.TrimSpace(questionID)
	voter = strings.TrimSpace(voter)
	if questionID == "" || voter == "" {
		return fmt.Errorf("%w: question id and voter are required", domain.ErrValidation)
	}

	current, known := c.view.Get(questionID)
	if known && current.HasVoter(voter) {
		metrics.VotesTotal.WithLabelValues("already_voted").Inc()
		return domain.ErrAlreadyVoted
	}

	if !known {
		// Nothing local to edit optimistically; let the store decide.
		stored, err := c.storeVote(ctx, questionID, voter)
		if err != nil {
			return c.voteFailed(questionID, err)
		}
		c.merge(stored)
		metrics.VotesTotal.WithLabelValues("accepted").Inc()
		return nil
	}

	c.view.Begin(questionID)
	defer c.view.Settle(questionID)

	if err := c.view.Apply(ranking.Delta{Kind: ranking.KindVote, ID: questionID, Voter: voter}); err != nil {
		// A concurrent local intent got there first.
		if errors.Is(err, domain.ErrAlreadyVoted) {
			metrics.VotesTotal.WithLabelValues("already_voted").Inc()
		}
		return err
	}

	stored, err := c.storeVote(ctx, questionID, voter)
	if err != nil {
		_ = c.view.Apply(ranking.Delta{Kind: ranking.KindRevertVote, ID: questionID, Voter: voter})
		metrics.RollbacksTotal.WithLabelValues("vote").Inc()
		return c.voteFailed(questionID, err)
	}

	c.merge(stored)
	metrics.VotesTotal.WithLabelValues("accepted").Inc()
	return nil
}

func (c *Coordinator) storeVote(ctx context.Context, id, voter string) (domain.Question, error) {
	defer observe("vote")()
	return c.repo.UpdateVote(ctx, id, voter)
}

func (c *Coordinator) voteFailed(id string, err error) error {
	switch {
	case errors.Is(err, domain.ErrAlreadyVoted):
		metrics.VotesTotal.WithLabelValues("already_voted").Inc()
		return domain.ErrAlreadyVoted
	case errors.Is(err, domain.ErrQuestionNotFound):
		metrics.VotesTotal.WithLabelValues("not_found").Inc()
		c.view.Remove(id)
		return domain.ErrQuestionNotFound
	default:
		metrics.VotesTotal.WithLabelValues("failed").Inc()
		c.log.Error().Err(err).Str("question_id", id).Msg("vote rejected by store, rolled back")
		return fmt.Errorf("%w: vote: %v", domain.ErrStoreUnavailable, err)
	}
}

// SubmitQuestion adds a new question authored by in.Author. The author's own
// vote is counted from the start. A repeated IdempotencyKey returns the
// question created by the first submission.
func (c *Coordinator) SubmitQuestion(ctx context.Context, in ports.AskInput) (domain.Question, error) {
	text := strings.TrimSpace(in.Text)
	author := strings.TrimSpace(in.Author)
	switch {
	case text == "":
		return domain.Question{}, fmt.Errorf("%w: question text is required", domain.ErrValidation)
	case author == "":
		return domain.Question{}, fmt.Errorf("%w: author is required", domain.ErrValidation)
	case len(text) > maxQuestionLength:
		return domain.Question{}, fmt.Errorf("%w: question text exceeds %d characters", domain.ErrValidation, maxQuestionLength)
	case len(author) > maxNameLength:
		return domain.Question{}, fmt.Errorf("%w: author exceeds %d characters", domain.ErrValidation, maxNameLength)
	}

	id := c.newID()
	idemKey := ""
	if in.IdempotencyKey != "" && c.idem != nil {
		// Keys are per author so two people cannot collide on one key.
		idemKey = author + ":" + in.IdempotencyKey
		existingID, claimed, err := c.idem.Claim(ctx, idemKey, id)
		switch {
		case err != nil:
			c.log.Warn().Err(err).Str("idempotency_key", idemKey).Msg("idempotency claim failed, submitting anyway")
			idemKey = ""
		case !claimed:
			c.log.Info().Str("idempotency_key", idemKey).Str("question_id", existingID).Msg("idempotent replay")
			return c.lookup(ctx, existingID)
		}
	}

	finalText, improved := c.improve(ctx, text)
	q := domain.Question{
		ID:        id,
		Text:      finalText,
		Votes:     1,
		Author:    author,
		Voters:    []string{author},
		Timestamp: c.timestamp(),
	}

	c.view.Begin(id)
	defer c.view.Settle(id)
	_ = c.view.Apply(ranking.Delta{Kind: ranking.KindInsert, Question: q})

	stored, err := c.storeInsert(ctx, q)
	if err != nil {
		c.view.Remove(id)
		metrics.RollbacksTotal.WithLabelValues("insert").Inc()
		c.release(idemKey)
		c.log.Error().Err(err).Str("question_id", id).Msg("insert rejected by store, rolled back")
		if errors.Is(err, domain.ErrConflict) {
			return domain.Question{}, err
		}
		return domain.Question{}, fmt.Errorf("%w: insert: %v", domain.ErrStoreUnavailable, err)
	}

	c.merge(stored)
	metrics.QuestionsSubmittedTotal.WithLabelValues(strconv.FormatBool(improved)).Inc()
	c.log.Info().Str("question_id", stored.ID).Str("author", stored.Author).Bool("improved", improved).Msg("question submitted")
	return stored, nil
}

func (c *Coordinator) storeInsert(ctx context.Context, q domain.Question) (domain.Question, error) {
	defer observe("insert")()
	return c.repo.Insert(ctx, q)
}

// improve returns the improver's rewrite of raw, or raw itself when no
// improver is configured or it fails.
func (c *Coordinator) improve(ctx context.Context, raw string) (string, bool) {
	if c.improver == nil {
		return raw, false
	}
	out, err := c.improver.Improve(ctx, raw)
	if err != nil {
		metrics.ImproveFallbackTotal.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Msg("text improvement failed, using raw text")
		return raw, false
	}
	out = strings.TrimSpace(out)
	if out == "" {
		metrics.ImproveFallbackTotal.WithLabelValues("empty").Inc()
		return raw, false
	}
	return out, out != raw
}

func (c *Coordinator) release(key string) {
	if key == "" || c.idem == nil {
		return
	}
	// The request context may already be gone.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.idem.Release(ctx, key); err != nil {
		c.log.Warn().Err(err).Str("idempotency_key", key).Msg("failed to release idempotency key")
	}
}

func (c *Coordinator) lookup(ctx context.Context, id string) (domain.Question, error) {
	if q, ok := c.view.Get(id); ok {
		return q, nil
	}
	rows, err := c.repo.List(ctx)
	if err != nil {
		return domain.Question{}, fmt.Errorf("%w: lookup: %v", domain.ErrStoreUnavailable, err)
	}
	if i := ranking.Find(rows, id); i >= 0 {
		return rows[i], nil
	}
	// The first submission with this key has not reached the store yet.
	return domain.Question{}, fmt.Errorf("%w: submission with this idempotency key is still in progress", domain.ErrConflict)
}

// SubmitMarkAnswered flags questionID answered. A store failure clears the
// optimistic flag again unless the question was already answered.
func (c *Coordinator) SubmitMarkAnswered(ctx context.Context, who domain.Identity, questionID string) error {
	if !who.IsAdmin() {
		return domain.ErrForbidden
	}

	c.view.Begin(questionID)
	defer c.view.Settle(questionID)
	current, known := c.view.Get(questionID)
	flipped := known && !current.IsAnswered
	_ = c.view.Apply(ranking.Delta{Kind: ranking.KindAnswered, ID: questionID})

	stored, err := c.storeAnswered(ctx, questionID)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) {
			c.view.Remove(questionID)
			return domain.ErrQuestionNotFound
		}
		if flipped {
			_ = c.view.Apply(ranking.Delta{Kind: ranking.KindRevertAnswered, ID: questionID})
			metrics.RollbacksTotal.WithLabelValues("answer").Inc()
		}
		c.log.Error().Err(err).Str("question_id", questionID).Msg("mark answered rejected by store, rolled back")
		return fmt.Errorf("%w: answer: %v", domain.ErrStoreUnavailable, err)
	}

	c.merge(stored)
	return nil
}

func (c *Coordinator) storeAnswered(ctx context.Context, id string) (domain.Question, error) {
	defer observe("answer")()
	return c.repo.SetAnswered(ctx, id)
}

// SubmitDelete removes questionID. Deleting an absent question succeeds.
func (c *Coordinator) SubmitDelete(ctx context.Context, who domain.Identity, questionID string) error {
	if !who.IsAdmin() {
		return domain.ErrForbidden
	}

	c.view.Begin(questionID)
	defer c.view.Settle(questionID)
	undo, removed := c.view.Remove(questionID)

	done := observe("delete")
	err := c.repo.Delete(ctx, questionID)
	done()
	if err != nil {
		if removed {
			undo()
			metrics.RollbacksTotal.WithLabelValues("delete").Inc()
		}
		c.log.Error().Err(err).Str("question_id", questionID).Msg("delete rejected by store, rolled back")
		return fmt.Errorf("%w: delete: %v", domain.ErrStoreUnavailable, err)
	}

	c.log.Info().Str("question_id", questionID).Str("by", who.Name).Msg("question deleted")
	return nil
}

// SubmitDeleteAll empties the board.
func (c *Coordinator) SubmitDeleteAll(ctx context.Context, who domain.Identity) error {
	if !who.IsAdmin() {
		return domain.ErrForbidden
	}

	undo := c.view.Clear()

	done := observe("delete_all")
	err := c.repo.DeleteAll(ctx)
	done()
	if err != nil {
		undo()
		metrics.RollbacksTotal.WithLabelValues("delete_all").Inc()
		c.log.Error().Err(err).Msg("delete-all rejected by store, rolled back")
		return fmt.Errorf("%w: delete all: %v", domain.ErrStoreUnavailable, err)
	}

	c.log.Info().Str("by", who.Name).Msg("all questions deleted")
	return nil
}

// merge folds the store's row into the view. Rows deleted meanwhile stay
// deleted.
func (c *Coordinator) merge(stored domain.Question) {
	if stored.ID == "" {
		return
	}
	c.view.Ingest(domain.ChangeEvent{Kind: domain.ChangeUpdate, ID: stored.ID, Question: &stored})
}

// timestamp returns unix milliseconds, strictly increasing within the process.
func (c *Coordinator) timestamp() int64 {
	ts := c.now().UnixMilli()

	c.tsMu.Lock()
	defer c.tsMu.Unlock()
	if ts <= c.lastTS {
		ts = c.lastTS + 1
	}
	c.lastTS = ts
	return ts
}

func observe(operation string) func() {
	start := time.Now()
	return func() {
		metrics.StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
