package domain

// ChangeKind identifies the store mutation carried by a ChangeEvent.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	// ChangeReset is emitted by feeds that can express delete-all as one event.
	ChangeReset ChangeKind = "reset"
)

// ChangeEvent is a single notification from the question change feed.
// Delivery is at-least-once with best-effort ordering; each event is
// self-describing by ID.
type ChangeEvent struct {
	Kind     ChangeKind `json:"kind"`
	ID       string     `json:"id,omitempty"`
	Question *Question  `json:"question,omitempty"`
}
