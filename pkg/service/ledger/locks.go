package ledger

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// accountLocks serializes in-process work per account. Entries are reference
// counted and dropped once nobody holds or waits on them.
type accountLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

func newAccountLocks() *accountLocks {
	return &accountLocks{entries: make(map[uuid.UUID]*lockEntry)}
}

// lock acquires the locks of ids in ascending byte order and returns the
// function releasing them. Duplicate ids are locked once. When ctx ends while
// waiting, the locks taken so far are released and ctx.Err() is returned.
func (l *accountLocks) lock(ctx context.Context, ids ...uuid.UUID) (unlock func(), err error) {
	ordered := slices.Clone(ids)
	slices.SortFunc(ordered, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	ordered = slices.Compact(ordered)

	held := make([]*lockEntry, 0, len(ordered))
	unlock = func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].sem.Release(1)
			l.release(ordered[i])
		}
	}
	for _, id := range ordered {
		e := l.acquire(id)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			l.release(id)
			unlock()
			return nil, err
		}
		held = append(held, e)
	}
	return unlock, nil
}

func (l *accountLocks) acquire(id uuid.UUID) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[id] = e
	}
	e.refs++
	return e
}

func (l *accountLocks) release(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[id]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

func (l *accountLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
