package hybrid

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/memvault/memvault/pkg/types"
)

// syncQueue is the bounded channel described by spec §4.4.3, optionally
// backed by a BadgerDB WAL so queued-but-undispatched ops survive a process
// restart (grounded on the teacher pack's procedural-memory BadgerDB usage:
// db.Update/View transactions over prefixed keys).
type syncQueue struct {
	ch       chan queued
	capacity int

	db *badger.DB // nil when spillover is disabled

	fullSince atomic.Int64 // unix nanos; 0 when not currently full
}

type queued struct {
	id    string
	entry types.SyncQueueEntry
}

const badgerKeyPrefix = "syncop:"

func newSyncQueue(capacity int, badgerPath string) (*syncQueue, error) {
	q := &syncQueue{
		ch:       make(chan queued, capacity),
		capacity: capacity,
	}

	if badgerPath == "" {
		return q, nil
	}

	opts := badger.DefaultOptions(badgerPath).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("hybrid: open badger spillover at %q: %w", badgerPath, err)
	}
	q.db = db

	if err := q.reload(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hybrid: reload badger spillover: %w", err)
	}
	return q, nil
}

// reload repopulates the in-memory channel from persisted entries after a
// restart, so ops enqueued before a crash are not lost.
func (q *syncQueue) reload() error {
	if q.db == nil {
		return nil
	}
	return q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(badgerKeyPrefix):])
			err := item.Value(func(val []byte) error {
				var entry types.SyncQueueEntry
				if err := json.Unmarshal(val, &entry); err != nil {
					return nil // skip malformed spillover entries
				}
				select {
				case q.ch <- queued{id: id, entry: entry}:
				default:
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// enqueue attempts a non-blocking send. ok is false when the queue is at
// capacity; the caller (Engine) is responsible for the backpressure policy
// (spec §4.4.3: synchronous fallback write after BackpressureAfter).
func (q *syncQueue) enqueue(entry types.SyncQueueEntry) (ok bool, err error) {
	id := uuid.NewString()

	if q.db != nil {
		data, merr := json.Marshal(entry)
		if merr != nil {
			return false, fmt.Errorf("hybrid: marshal sync entry: %w", merr)
		}
		if werr := q.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(badgerKeyPrefix+id), data)
		}); werr != nil {
			return false, fmt.Errorf("hybrid: persist sync entry: %w", werr)
		}
	}

	select {
	case q.ch <- queued{id: id, entry: entry}:
		q.fullSince.Store(0)
		return true, nil
	default:
		q.fullSince.CompareAndSwap(0, time.Now().UnixNano())
		q.removePersisted(id)
		return false, nil
	}
}

// overCapacityFor reports whether the queue has been continuously full for
// at least d, triggering the synchronous-fallback backpressure policy.
func (q *syncQueue) overCapacityFor(d time.Duration) bool {
	since := q.fullSince.Load()
	if since == 0 {
		return false
	}
	return time.Since(time.Unix(0, since)) >= d
}

func (q *syncQueue) ack(id string) {
	q.removePersisted(id)
}

func (q *syncQueue) removePersisted(id string) {
	if q.db == nil {
		return
	}
	_ = q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerKeyPrefix + id))
	})
}

func (q *syncQueue) pendingCount() int {
	return len(q.ch)
}

func (q *syncQueue) close() error {
	if q.db == nil {
		return nil
	}
	return q.db.Close()
}
