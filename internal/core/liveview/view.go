// Package liveview holds the process-local ranked view of the question board
// and keeps it eventually consistent with the question store.
//
// View is the state container. Local intents go through Apply, Remove and
// Clear; change-feed notifications go through Ingest; periodic snapshots go
// through Replace. Sync drives the latter two from a single goroutine.
package liveview

import (
	"sync"
	"time"

	"github.com/livequestions/ama-api/internal/core/domain"
	"github.com/livequestions/ama-api/internal/core/ranking"
)

const defaultTombstoneTTL = 10 * time.Minute

// View is safe for concurrent use. No method blocks on I/O.
type View struct {
	mu        sync.RWMutex
	questions []domain.Question

	// version increases on every mutation; touched records the version at
	// which each id last changed so a snapshot started earlier cannot clobber it.
	version uint64
	touched map[string]uint64
	// pending counts store calls in flight per id.
	pending map[string]int
	// deleted holds tombstones so a late insert or update cannot resurrect a
	// question whose delete was already seen.
	deleted map[string]time.Time
	// clearedAt is the version of the last delete-all; clearedTS is the newest
	// creation timestamp it removed.
	clearedAt uint64
	clearedTS int64

	tombstoneTTL time.Duration
	now          func() time.Time
}

func NewView() *View {
	return &View{
		questions:    []domain.Question{},
		touched:      make(map[string]uint64),
		pending:      make(map[string]int),
		deleted:      make(map[string]time.Time),
		tombstoneTTL: defaultTombstoneTTL,
		now:          time.Now,
	}
}

// Snapshot returns a deep copy of the ranked questions.
func (v *View) Snapshot() []domain.Question {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]domain.Question, len(v.questions))
	for i, q := range v.questions {
		out[i] = q.Clone()
	}
	return out
}

// Len is the number of questions currently in the view.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.questions)
}

// Get returns a copy of question id.
func (v *View) Get(id string) (domain.Question, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if i := ranking.Find(v.questions, id); i >= 0 {
		return v.questions[i].Clone(), true
	}
	return domain.Question{}, false
}

// Version is the current mutation counter. Sync reads it before fetching a
// snapshot and hands it back to Replace.
func (v *View) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Begin marks id as having a store call in flight. Every Begin must be paired
// with a Settle.
func (v *View) Begin(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending[id]++
}

// Settle ends one in-flight store call for id.
func (v *View) Settle(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending[id] <= 1 {
		delete(v.pending, id)
		return
	}
	v.pending[id]--
}

// Pending reports whether id has a store call in flight.
func (v *View) Pending(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pending[id] > 0
}

// Apply runs a local delta. Local intents are never suppressed by tombstones.
func (v *View) Apply(d ranking.Delta) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.applyLocked(d)
}

// Remove deletes id and returns the inverse operation, which re-inserts the
// removed row with its prior fields. ok is false when id was not in the view.
func (v *View) Remove(id string) (undo func(), ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := ranking.Find(v.questions, id)
	if i < 0 {
		return func() {}, false
	}
	removed := v.questions[i].Clone()
	_ = v.applyLocked(ranking.Delta{Kind: ranking.KindDelete, ID: id})

	return func() { v.restore([]domain.Question{removed}, nil) }, true
}

// Clear removes every question and returns the inverse operation.
func (v *View) Clear() (undo func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	removed := make([]domain.Question, len(v.questions))
	for i, q := range v.questions {
		removed[i] = q.Clone()
	}
	prev := clearMark{at: v.clearedAt, ts: v.clearedTS}
	_ = v.applyLocked(ranking.Delta{Kind: ranking.KindDeleteAll})

	return func() { v.restore(removed, &prev) }
}

type clearMark struct {
	at uint64
	ts int64
}

// restore re-inserts rows removed by a local delete and lifts their
// tombstones. A non-nil mark also rewinds the delete-all watermark.
func (v *View) restore(qs []domain.Question, mark *clearMark) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if mark != nil {
		v.clearedAt, v.clearedTS = mark.at, mark.ts
	}
	for _, q := range qs {
		delete(v.deleted, q.ID)
		_ = v.applyLocked(ranking.Delta{Kind: ranking.KindInsert, Question: q})
	}
}

// Ingest applies a change-feed event. It returns true when the event could
// not be applied incrementally and the caller should re-fetch instead.
func (v *View) Ingest(ev domain.ChangeEvent) (refresh bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Kind {
	case domain.ChangeInsert, domain.ChangeUpdate:
		if ev.Question == nil || ev.Question.ID == "" {
			return true
		}
		if v.suppressed(*ev.Question) {
			return false
		}
		kind := ranking.KindInsert
		if ev.Kind == domain.ChangeUpdate {
			kind = ranking.KindUpsert
		}
		_ = v.applyLocked(ranking.Delta{Kind: kind, Question: *ev.Question})
	case domain.ChangeDelete:
		id := ev.ID
		if id == "" && ev.Question != nil {
			id = ev.Question.ID
		}
		if id == "" {
			return true
		}
		_ = v.applyLocked(ranking.Delta{Kind: ranking.KindDelete, ID: id})
	case domain.ChangeReset:
		_ = v.applyLocked(ranking.Delta{Kind: ranking.KindDeleteAll})
	default:
		return true
	}
	return false
}

// Replace installs a store snapshot fetched after Version returned since.
// Rows that are pending or changed locally after since keep their local
// state, tombstoned ids stay deleted, and a delete-all newer than the
// snapshot discards it entirely. It reports whether the snapshot was used.
func (v *View) Replace(rows []domain.Question, since uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.pruneTombstones()
	if v.clearedAt > since {
		return false
	}

	keepLocal := func(id string) bool {
		return v.pending[id] > 0 || v.touched[id] > since
	}

	next := make([]domain.Question, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, q := range rows {
		seen[q.ID] = struct{}{}
		if _, gone := v.deleted[q.ID]; gone {
			continue
		}
		if keepLocal(q.ID) {
			if i := ranking.Find(v.questions, q.ID); i >= 0 {
				next = append(next, v.questions[i])
			}
			continue
		}
		next = append(next, q.Clone())
	}
	for _, q := range v.questions {
		if _, ok := seen[q.ID]; !ok && keepLocal(q.ID) {
			next = append(next, q)
		}
	}
	v.questions = ranking.Sort(next)

	for id, at := range v.touched {
		if at <= since && v.pending[id] == 0 {
			delete(v.touched, id)
		}
	}
	return true
}

func (v *View) applyLocked(d ranking.Delta) error {
	prev := v.questions
	next, err := ranking.Apply(prev, d)
	if err != nil {
		return err
	}
	v.questions = next
	v.version++

	switch d.Kind {
	case ranking.KindDelete:
		v.deleted[d.ID] = v.now()
		v.touched[d.ID] = v.version
	case ranking.KindDeleteAll:
		now := v.now()
		for _, q := range prev {
			v.deleted[q.ID] = now
			v.touched[q.ID] = v.version
			v.clearedTS = max(v.clearedTS, q.Timestamp)
		}
		v.clearedAt = v.version
	case ranking.KindInsert, ranking.KindUpsert:
		v.touched[d.Question.ID] = v.version
	default:
		v.touched[d.ID] = v.version
	}
	return nil
}

// suppressed reports whether a remote insert or update refers to a question
// this view has already seen deleted.
func (v *View) suppressed(q domain.Question) bool {
	if _, gone := v.deleted[q.ID]; gone {
		return true
	}
	return v.clearedAt > 0 && q.Timestamp <= v.clearedTS && ranking.Find(v.questions, q.ID) < 0
}

func (v *View) pruneTombstones() {
	cutoff := v.now().Add(-v.tombstoneTTL)
	for id, at := range v.deleted {
		if at.Before(cutoff) {
			delete(v.deleted, id)
		}
	}
}
