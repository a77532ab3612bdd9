package events

import (
	"context"
	"sync"
)

// MemoryJournal keeps published messages in process.
type MemoryJournal struct {
	mu   sync.RWMutex
	msgs []Message
	last uint64
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Name() string { return "memory" }

// Publish appends messages newer than anything already stored.
func (j *MemoryJournal) Publish(_ context.Context, msgs []Message) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, m := range msgs {
		if m.Seq <= j.last {
			continue
		}
		j.msgs = append(j.msgs, m)
		j.last = m.Seq
	}
	return nil
}

func (j *MemoryJournal) List(_ context.Context, since uint64, limit int) ([]Message, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]Message, 0)
	for _, m := range j.msgs {
		if m.Seq <= since {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m)
	}
	return out, nil
}
