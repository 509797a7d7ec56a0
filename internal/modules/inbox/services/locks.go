package services

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

const lockStripes = 256

// ConversationLocks serializes commit+publish per conversation so events
// reach subscribers in commit order. Striped to keep memory bounded; the
// ingest service and the dispatcher must share one instance.
type ConversationLocks struct {
	stripes [lockStripes]sync.Mutex
}

func NewConversationLocks() *ConversationLocks {
	return &ConversationLocks{}
}

// Lock acquires the stripe of id and returns its unlock func
func (l *ConversationLocks) Lock(id uuid.UUID) func() {
	h := fnv.New32a()
	h.Write(id[:])
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
