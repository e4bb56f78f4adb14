package mongo

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/livequestions/ama-api/internal/core/domain"
	"github.com/livequestions/ama-api/internal/core/ports"
)

const changeBuffer = 128

var _ ports.ChangeFeed = (*ChangeStream)(nil)

// ChangeStream exposes the questions collection's change stream as a
// ChangeFeed. It requires a replica set or sharded cluster.
type ChangeStream struct {
	col *mongo.Collection
	log zerolog.Logger
}

func NewChangeStream(db *mongo.Database, log zerolog.Logger) *ChangeStream {
	return &ChangeStream{col: db.Collection(collectionQuestions), log: log}
}

type changeDoc struct {
	OperationType string           `bson:"operationType"`
	FullDocument  *domain.Question `bson:"fullDocument"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// Subscribe opens a change stream. The channel closes when ctx ends, the
// unsubscribe func is called, or the stream errors.
func (s *ChangeStream) Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, func(), error) {
	streamCtx, cancel := context.WithCancel(ctx)

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := s.col.Watch(streamCtx, mongo.Pipeline{}, opts)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("watch questions: %w", err)
	}

	out := make(chan domain.ChangeEvent, changeBuffer)
	go func() {
		defer close(out)
		defer cs.Close(context.Background())

		for cs.Next(streamCtx) {
			ev, err := decodeChange(cs.Current)
			if err != nil {
				s.log.Warn().Err(err).Msg("undecodable change event")
				ev = domain.ChangeEvent{Kind: "undecodable"}
			}
			select {
			case out <- ev:
			case <-streamCtx.Done():
				return
			}
		}
		if err := cs.Err(); err != nil && streamCtx.Err() == nil {
			s.log.Warn().Err(err).Msg("change stream ended")
		}
	}()

	return out, cancel, nil
}

// toChangeEvent maps a change stream document. Operations other than insert,
// update, replace and delete (drop, rename, invalidate) keep their name as
// the kind, which the live view treats as a cue to re-fetch.
func toChangeEvent(doc changeDoc) domain.ChangeEvent {
	ev := domain.ChangeEvent{ID: doc.DocumentKey.ID}
	if doc.FullDocument != nil {
		q := doc.FullDocument.Clone()
		normalize(&q)
		ev.Question = &q
	}

	switch doc.OperationType {
	case "insert":
		ev.Kind = domain.ChangeInsert
	case "update", "replace":
		ev.Kind = domain.ChangeUpdate
	case "delete":
		ev.Kind = domain.ChangeDelete
		ev.Question = nil
	default:
		ev.Kind = domain.ChangeKind(doc.OperationType)
	}
	return ev
}

func decodeChange(raw bson.Raw) (domain.ChangeEvent, error) {
	var doc changeDoc
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return domain.ChangeEvent{}, err
	}
	return toChangeEvent(doc), nil
}
