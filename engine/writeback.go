package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Punky2280/dat-bitch-cartrita-sub015/cache"
)

type writeBackItem struct {
	key   string
	data  []byte
	l2TTL time.Duration
	l3TTL time.Duration
}

// writeBackQueue defers slower-tier writes to a background loop that
// drains in bounded batches separated by a throttle delay, so write bursts
// do not overwhelm the remote tiers. Submissions beyond the queue's
// capacity are rejected with ErrQueueFull rather than grown unboundedly.
type writeBackQueue struct {
	ch        chan writeBackItem
	batchSize int
	throttle  time.Duration
	flush     func(ctx context.Context, items []writeBackItem)
}

func newWriteBackQueue(maxSize, batchSize int, throttle time.Duration, flush func(ctx context.Context, items []writeBackItem)) *writeBackQueue {
	return &writeBackQueue{
		ch:        make(chan writeBackItem, maxSize),
		batchSize: batchSize,
		throttle:  throttle,
		flush:     flush,
	}
}

func (q *writeBackQueue) enqueue(item writeBackItem) error {
	select {
	case q.ch <- item:
		return nil
	default:
		return errors.Mark(errors.New("write-back queue at capacity"), cache.ErrQueueFull)
	}
}

func (q *writeBackQueue) depth() int {
	return len(q.ch)
}

// run drains the queue until ctx is canceled. Each pass blocks for one
// item, then greedily collects up to batchSize before flushing.
func (q *writeBackQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case first := <-q.ch:
			batch := make([]writeBackItem, 1, q.batchSize)
			batch[0] = first
			for len(batch) < q.batchSize {
				select {
				case item := <-q.ch:
					batch = append(batch, item)
				default:
					goto drained
				}
			}
		drained:
			q.flush(ctx, batch)

			select {
			case <-ctx.Done():
				return
			case <-time.After(q.throttle):
			}
		}
	}
}
