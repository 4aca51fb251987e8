// Package store is the durable message log: append-only persisted
// messages plus the status lifecycle and the conversation aggregation
// queries built on top of them.
package store

import (
	"context"
	"errors"
	"time"
)

// Status is the delivery state of a message. It only moves forward:
// sent -> delivered -> read.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

var statusRank = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvance reports whether a transition from s to next moves the
// lifecycle forward. Equal states are not an advance.
func (s Status) CanAdvance(next Status) bool {
	sr, ok1 := statusRank[s]
	nr, ok2 := statusRank[next]
	return ok1 && ok2 && nr > sr
}

// Message is one persisted direct message. Immutable once appended,
// except Status. JSON names match the client wire payload.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int32     `json:"senderId"`
	ReceiverID int32     `json:"receiverId"`
	Body       string    `json:"message"`
	SentAt     time.Time `json:"timestamp"`
	Status     Status    `json:"status"`
}

// ChatSummary is one row of the per-user conversation aggregation:
// the counterpart and the most recent message, plus how many messages
// from that counterpart the user has not read yet.
type ChatSummary struct {
	CounterpartID   int32
	LastMessage     string
	LastMessageTime time.Time
	UnreadCount     int32
}

// ErrStatusRegression is returned by UpdateStatus when the requested
// transition would move the lifecycle backward.
var ErrStatusRegression = errors.New("store: status may only advance")

// ErrMessageNotFound is returned by UpdateStatus when no message with
// the given id exists.
var ErrMessageNotFound = errors.New("store: message not found")

type MessageStore interface {
	// Append persists a new message with status `sent` and returns it
	// with the assigned id. A zero sentAt means "assign server time".
	Append(ctx context.Context, senderID, receiverID int32, body string, sentAt time.Time) (*Message, error)

	// UpdateStatus advances the status of a single message.
	UpdateStatus(ctx context.Context, id int64, status Status) error

	// BatchMarkRead marks every non-read message from senderID to
	// receiverID as read, in one atomic update. Returns the number of
	// rows changed; zero rows is a no-op, not an error.
	BatchMarkRead(ctx context.Context, receiverID, senderID int32) (int64, error)

	// CountUnread returns how many messages from senderID to receiverID
	// are not yet read.
	CountUnread(ctx context.Context, receiverID, senderID int32) (int64, error)

	// QueryRange returns the most recent `limit` messages between the
	// two users, ordered by ascending (sent_at, id).
	QueryRange(ctx context.Context, idA, idB int32, limit int32) ([]*Message, error)

	// QueryConversationSummaries returns one summary per counterpart of
	// uid, ordered by last message time descending.
	QueryConversationSummaries(ctx context.Context, uid int32) ([]*ChatSummary, error)
}
