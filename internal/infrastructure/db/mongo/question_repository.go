package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/livequestions/ama-api/internal/core/domain"
	"github.com/livequestions/ama-api/internal/core/ports"
)

const collectionQuestions = "questions"

var _ ports.QuestionRepository = (*QuestionRepository)(nil)

type QuestionRepository struct {
	col *mongo.Collection
}

func NewQuestionRepository(db *mongo.Database) *QuestionRepository {
	return &QuestionRepository{col: db.Collection(collectionQuestions)}
}

// List returns every stored question.
func (r *QuestionRepository) List(ctx context.Context) ([]domain.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]domain.Question, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	for i := range out {
		normalize(&out[i])
	}
	return out, nil
}

// Insert stores a new question document.
func (r *QuestionRepository) Insert(ctx context.Context, q domain.Question) (domain.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Timestamp == 0 {
		q.Timestamp = time.Now().UnixMilli()
	}
	q = q.Clone()
	normalize(&q)

	if _, err := r.col.InsertOne(ctx, q); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Question{}, domain.ErrConflict
		}
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

// UpdateVote atomically appends voter and increments votes. The filter only
// matches when voter is absent, so concurrent votes from distinct voters all
// apply and a repeated voter applies at most once.
func (r *QuestionRepository) UpdateVote(ctx context.Context, id, voter string) (domain.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "voters": bson.M{"$ne": voter}}
	update := bson.M{
		"$inc":  bson.M{"votes": 1},
		"$push": bson.M{"voters": voter},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var q domain.Question
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&q)
	if err == nil {
		normalize(&q)
		return q, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Question{}, fmt.Errorf("vote: %w", err)
	}

	// Either the question is gone or the voter is already recorded.
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return domain.Question{}, fmt.Errorf("vote lookup: %w", err)
	}
	if n == 0 {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return domain.Question{}, domain.ErrAlreadyVoted
}

// SetAnswered flags the question answered.
func (r *QuestionRepository) SetAnswered(ctx context.Context, id string) (domain.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var q domain.Question
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_answered": true}}, opts).Decode(&q)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Question{}, domain.ErrQuestionNotFound
		}
		return domain.Question{}, fmt.Errorf("set answered: %w", err)
	}
	normalize(&q)
	return q, nil
}

// Delete removes one question. Removing a missing id is not an error.
func (r *QuestionRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// DeleteAll empties the collection.
func (r *QuestionRepository) DeleteAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("delete all questions: %w", err)
	}
	return nil
}

// EnsureIndexes creates the ranking index on the questions collection.
func (r *QuestionRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "votes", Value: -1}, {Key: "timestamp", Value: -1}}},
	}

	if _, err := r.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create question indexes: %w", err)
	}
	return nil
}

// normalize restores votes == len(voters) on rows written by older clients.
func normalize(q *domain.Question) {
	if q.Voters == nil {
		q.Voters = []string{}
	}
	q.Votes = len(q.Voters)
}
