// Package convo defines the canonical conversation key for a pair of users.
//
// The key is the sole addressing anchor for real-time fan-out: room
// subscription and chat-list partitioning both derive from it, so the two
// computations always agree.
package convo

import "fmt"

// Key identifies the conversation between two users, independent of which
// of them initiated it. Comparable, safe to use as a map key.
type Key struct {
	Low  int32
	High int32
}

// KeyOf builds the key for the pair (a, b). KeyOf(a, b) == KeyOf(b, a).
func KeyOf(a, b int32) Key {
	if a > b {
		a, b = b, a
	}
	return Key{Low: a, High: b}
}

// Contains reports whether uid is one of the two participants.
func (k Key) Contains(uid int32) bool {
	return uid == k.Low || uid == k.High
}

// Counterpart returns the participant other than uid.
// The result is meaningless when uid is not a participant.
func (k Key) Counterpart(uid int32) int32 {
	if uid == k.Low {
		return k.High
	}
	return k.Low
}

// String renders the key as "low-high", the same form the aggregation
// queries use for partitioning.
func (k Key) String() string {
	return fmt.Sprintf("%d-%d", k.Low, k.High)
}
