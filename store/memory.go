package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryStore is a MessageStore kept entirely in process memory.
// It backs `--mem-store` development runs and the behavioral tests; it
// computes the same aggregations as the MySQL implementation.
type memoryStore struct {
	sync.Mutex
	nextID   int64
	messages []*Message
}

func NewMemoryStore() MessageStore {
	return &memoryStore{nextID: 1}
}

func (s *memoryStore) Append(ctx context.Context, senderID, receiverID int32, body string, sentAt time.Time) (*Message, error) {
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	s.Lock()
	defer s.Unlock()

	msg := &Message{
		ID:         s.nextID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		SentAt:     sentAt,
		Status:     StatusSent,
	}
	s.nextID++
	s.messages = append(s.messages, msg)

	cp := *msg
	return &cp, nil
}

func (s *memoryStore) UpdateStatus(ctx context.Context, id int64, status Status) error {
	s.Lock()
	defer s.Unlock()

	for _, m := range s.messages {
		if m.ID == id {
			if !m.Status.CanAdvance(status) {
				return ErrStatusRegression
			}
			m.Status = status
			return nil
		}
	}
	return ErrMessageNotFound
}

func (s *memoryStore) BatchMarkRead(ctx context.Context, receiverID, senderID int32) (int64, error) {
	s.Lock()
	defer s.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID && m.Status != StatusRead {
			m.Status = StatusRead
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) CountUnread(ctx context.Context, receiverID, senderID int32) (int64, error) {
	s.Lock()
	defer s.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID && m.Status != StatusRead {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) QueryRange(ctx context.Context, idA, idB int32, limit int32) ([]*Message, error) {
	s.Lock()
	defer s.Unlock()

	var between []*Message
	for _, m := range s.messages {
		if (m.SenderID == idA && m.ReceiverID == idB) || (m.SenderID == idB && m.ReceiverID == idA) {
			between = append(between, m)
		}
	}

	sort.Slice(between, func(i, j int) bool {
		if !between[i].SentAt.Equal(between[j].SentAt) {
			return between[i].SentAt.Before(between[j].SentAt)
		}
		return between[i].ID < between[j].ID
	})

	// Keep the most recent window, ascending.
	if limit > 0 && int32(len(between)) > limit {
		between = between[int32(len(between))-limit:]
	}

	out := make([]*Message, len(between))
	for i, m := range between {
		cp := *m
		out[i] = &cp
	}
	return out, nil
}

func (s *memoryStore) QueryConversationSummaries(ctx context.Context, uid int32) ([]*ChatSummary, error) {
	s.Lock()
	defer s.Unlock()

	last := make(map[int32]*Message)
	unread := make(map[int32]int32)

	for _, m := range s.messages {
		var other int32
		switch uid {
		case m.SenderID:
			other = m.ReceiverID
		case m.ReceiverID:
			other = m.SenderID
		default:
			continue
		}

		if prev, ok := last[other]; !ok || m.SentAt.After(prev.SentAt) ||
			(m.SentAt.Equal(prev.SentAt) && m.ID > prev.ID) {
			last[other] = m
		}

		if m.ReceiverID == uid && m.Status != StatusRead {
			unread[other]++
		}
	}

	out := make([]*ChatSummary, 0, len(last))
	for other, m := range last {
		out = append(out, &ChatSummary{
			CounterpartID:   other,
			LastMessage:     m.Body,
			LastMessageTime: m.SentAt,
			UnreadCount:     unread[other],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}
