package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/livequestions/ama-api/internal/core/domain"
	"github.com/livequestions/ama-api/internal/core/ports"
)

var _ ports.QuestionRepository = (*PublishingRepository)(nil)

// PublishingRepository announces every committed mutation of the wrapped
// store on a change feed. It is used with stores that have no native feed
// (the in-memory table) or when the feed is carried by Redis instead.
// A failed publish is logged only: the write already committed and the
// periodic refresh will carry it to other views.
type PublishingRepository struct {
	ports.QuestionRepository
	pub ports.EventPublisher
	log zerolog.Logger
}

func NewPublishingRepository(repo ports.QuestionRepository, pub ports.EventPublisher, log zerolog.Logger) *PublishingRepository {
	return &PublishingRepository{QuestionRepository: repo, pub: pub, log: log}
}

func (r *PublishingRepository) Insert(ctx context.Context, q domain.Question) (domain.Question, error) {
	stored, err := r.QuestionRepository.Insert(ctx, q)
	if err != nil {
		return stored, err
	}
	r.publish(ctx, domain.ChangeEvent{Kind: domain.ChangeInsert, ID: stored.ID, Question: ptr(stored)})
	return stored, nil
}

func (r *PublishingRepository) UpdateVote(ctx context.Context, id, voter string) (domain.Question, error) {
	stored, err := r.QuestionRepository.UpdateVote(ctx, id, voter)
	if err != nil {
		return stored, err
	}
	r.publish(ctx, domain.ChangeEvent{Kind: domain.ChangeUpdate, ID: stored.ID, Question: ptr(stored)})
	return stored, nil
}

func (r *PublishingRepository) SetAnswered(ctx context.Context, id string) (domain.Question, error) {
	stored, err := r.QuestionRepository.SetAnswered(ctx, id)
	if err != nil {
		return stored, err
	}
	r.publish(ctx, domain.ChangeEvent{Kind: domain.ChangeUpdate, ID: stored.ID, Question: ptr(stored)})
	return stored, nil
}

func (r *PublishingRepository) Delete(ctx context.Context, id string) error {
	if err := r.QuestionRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.publish(ctx, domain.ChangeEvent{Kind: domain.ChangeDelete, ID: id})
	return nil
}

func (r *PublishingRepository) DeleteAll(ctx context.Context) error {
	if err := r.QuestionRepository.DeleteAll(ctx); err != nil {
		return err
	}
	r.publish(ctx, domain.ChangeEvent{Kind: domain.ChangeReset})
	return nil
}

func (r *PublishingRepository) publish(ctx context.Context, ev domain.ChangeEvent) {
	if err := r.pub.Publish(ctx, ev); err != nil {
		r.log.Warn().Err(err).Str("kind", string(ev.Kind)).Str("id", ev.ID).Msg("change event publish failed")
	}
}

func ptr(q domain.Question) *domain.Question {
	c := q.Clone()
	return &c
}
