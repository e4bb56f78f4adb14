package domain

import (
	"errors"
	"slices"
)

var ErrValidation = errors.New("invalid input")
var ErrQuestionNotFound = errors.New("question not found")
var ErrAlreadyVoted = errors.New("already voted")
var ErrConflict = errors.New("conflicting update")
var ErrStoreUnavailable = errors.New("question store unavailable")
var ErrImprovementUnavailable = errors.New("text improvement unavailable")
var ErrForbidden = errors.New("access forbidden")

// Question is the aggregate shown on the board. Votes always equals
// len(Voters) in a consistent state and IsAnswered only moves false→true.
type Question struct {
	ID         string   `json:"id" bson:"_id"`
	Text       string   `json:"text" bson:"text"`
	Votes      int      `json:"votes" bson:"votes"`
	Author     string   `json:"author" bson:"author"`
	IsAnswered bool     `json:"isAnswered" bson:"is_answered"`
	Voters     []string `json:"voters" bson:"voters"`
	// Timestamp is the creation time in unix milliseconds; it breaks vote ties.
	Timestamp int64 `json:"timestamp" bson:"timestamp"`
}

// HasVoter reports whether voter has already cast a vote on q.
func (q Question) HasVoter(voter string) bool {
	return slices.Contains(q.Voters, voter)
}

// Clone returns a deep copy so callers never share the Voters backing array.
func (q Question) Clone() Question {
	q.Voters = slices.Clone(q.Voters)
	return q
}
