// Package ranking maintains the total order of questions on the board and
// applies insert, vote, answer and delete deltas to it.
//
// Every function is pure: the input slice and its questions are never
// modified and the result is a freshly sorted slice. The same deltas applied
// to the same collection always produce the same collection, which is what
// lets optimistic edits and change-feed events share one code path.
package ranking

import (
	"cmp"
	"slices"

	"github.com/livequestions/ama-api/internal/core/domain"
)

// Kind enumerates the deltas understood by Apply.
type Kind int

const (
	KindInsert Kind = iota
	KindUpsert
	KindVote
	KindRevertVote
	KindAnswered
	KindRevertAnswered
	KindDelete
	KindDeleteAll
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpsert:
		return "upsert"
	case KindVote:
		return "vote"
	case KindRevertVote:
		return "revert_vote"
	case KindAnswered:
		return "answered"
	case KindRevertAnswered:
		return "revert_answered"
	case KindDelete:
		return "delete"
	case KindDeleteAll:
		return "delete_all"
	default:
		return "unknown"
	}
}

// Delta describes one state transition. Only the fields relevant to Kind are
// read: Question for inserts and upserts, ID for targeted deltas, Voter for
// vote deltas.
type Delta struct {
	Kind     Kind
	ID       string
	Voter    string
	Question domain.Question
}

// Apply dispatches d to the matching operation.
func Apply(qs []domain.Question, d Delta) ([]domain.Question, error) {
	switch d.Kind {
	case KindInsert:
		return ApplyInsert(qs, d.Question), nil
	case KindUpsert:
		return ApplyUpsert(qs, d.Question), nil
	case KindVote:
		return ApplyVote(qs, d.ID, d.Voter)
	case KindRevertVote:
		return RevertVote(qs, d.ID, d.Voter), nil
	case KindAnswered:
		return ApplyAnswered(qs, d.ID)
	case KindRevertAnswered:
		return RevertAnswered(qs, d.ID), nil
	case KindDelete:
		return ApplyDelete(qs, d.ID), nil
	case KindDeleteAll:
		return ApplyDeleteAll(qs), nil
	}
	return Sort(qs), nil
}

// Compare orders by votes descending, then by timestamp descending, so that
// among equally voted questions the most recent one comes first.
func Compare(a, b domain.Question) int {
	if c := cmp.Compare(b.Votes, a.Votes); c != 0 {
		return c
	}
	return cmp.Compare(b.Timestamp, a.Timestamp)
}

// Sort returns a ranked copy of qs. Questions with equal keys keep their
// relative order.
func Sort(qs []domain.Question) []domain.Question {
	out := clone(qs)
	slices.SortStableFunc(out, Compare)
	return out
}

// Find returns the position of id in qs, or -1.
func Find(qs []domain.Question, id string) int {
	return slices.IndexFunc(qs, func(q domain.Question) bool { return q.ID == id })
}

// ApplyInsert adds q. An id that is already present is merged as an upsert so
// duplicate insert notifications are harmless.
func ApplyInsert(qs []domain.Question, q domain.Question) []domain.Question {
	if Find(qs, q.ID) >= 0 {
		return ApplyUpsert(qs, q)
	}
	out := append(clone(qs), q.Clone())
	slices.SortStableFunc(out, Compare)
	return out
}

// ApplyUpsert merges a full-row snapshot into the collection. Voters form a
// grow-only set, so the merge takes their union and recomputes the count;
// answered is sticky. Text and author come from the snapshot. Applying an
// older snapshot after a newer one therefore never loses a vote.
func ApplyUpsert(qs []domain.Question, q domain.Question) []domain.Question {
	i := Find(qs, q.ID)
	if i < 0 {
		return ApplyInsert(qs, q)
	}
	out := clone(qs)
	cur := out[i]
	for _, v := range q.Voters {
		if !cur.HasVoter(v) {
			cur.Voters = append(cur.Voters, v)
		}
	}
	cur.Votes = len(cur.Voters)
	cur.IsAnswered = cur.IsAnswered || q.IsAnswered
	if q.Text != "" {
		cur.Text = q.Text
	}
	if q.Author != "" {
		cur.Author = q.Author
	}
	if cur.Timestamp == 0 {
		cur.Timestamp = q.Timestamp
	}
	out[i] = cur
	slices.SortStableFunc(out, Compare)
	return out
}

// ApplyVote records voter on question id. It fails with ErrQuestionNotFound
// when id is absent and ErrAlreadyVoted when voter already voted; on failure
// the input is returned unchanged.
func ApplyVote(qs []domain.Question, id, voter string) ([]domain.Question, error) {
	i := Find(qs, id)
	if i < 0 {
		return qs, domain.ErrQuestionNotFound
	}
	if qs[i].HasVoter(voter) {
		return qs, domain.ErrAlreadyVoted
	}
	out := clone(qs)
	out[i].Votes++
	out[i].Voters = append(out[i].Voters, voter)
	slices.SortStableFunc(out, Compare)
	return out, nil
}

// RevertVote is the exact inverse of ApplyVote. It is a no-op when the
// question or the voter is no longer there.
func RevertVote(qs []domain.Question, id, voter string) []domain.Question {
	i := Find(qs, id)
	if i < 0 || !qs[i].HasVoter(voter) {
		return qs
	}
	out := clone(qs)
	out[i].Voters = slices.DeleteFunc(out[i].Voters, func(v string) bool { return v == voter })
	out[i].Votes--
	slices.SortStableFunc(out, Compare)
	return out
}

// ApplyAnswered flags question id as answered. Repeating it is a no-op.
func ApplyAnswered(qs []domain.Question, id string) ([]domain.Question, error) {
	i := Find(qs, id)
	if i < 0 {
		return qs, domain.ErrQuestionNotFound
	}
	if qs[i].IsAnswered {
		return qs, nil
	}
	out := clone(qs)
	out[i].IsAnswered = true
	return out, nil
}

// RevertAnswered clears the answered flag set by ApplyAnswered. It is a
// no-op when the question is gone or not answered.
func RevertAnswered(qs []domain.Question, id string) []domain.Question {
	i := Find(qs, id)
	if i < 0 || !qs[i].IsAnswered {
		return qs
	}
	out := clone(qs)
	out[i].IsAnswered = false
	return out
}

// ApplyDelete removes question id; deleting an absent id is a no-op.
func ApplyDelete(qs []domain.Question, id string) []domain.Question {
	if Find(qs, id) < 0 {
		return qs
	}
	return slices.DeleteFunc(clone(qs), func(q domain.Question) bool { return q.ID == id })
}

// ApplyDeleteAll empties the collection.
func ApplyDeleteAll(_ []domain.Question) []domain.Question {
	return []domain.Question{}
}

func clone(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs), len(qs)+1)
	for i, q := range qs {
		out[i] = q.Clone()
	}
	return out
}
