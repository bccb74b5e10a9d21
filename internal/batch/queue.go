package batch

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// workQueue hands out batch items to workers. Items are claimed exactly
// once; a claimed item is owned by its worker until terminal success or
// retry exhaustion.
type workQueue struct {
	items chan *models.BatchQueueItem
}

func newWorkQueue(items []*models.BatchQueueItem) *workQueue {
	q := &workQueue{items: make(chan *models.BatchQueueItem, len(items))}
	for _, item := range items {
		q.items <- item
	}
	close(q.items)
	return q
}

// claim returns the next unclaimed item, or nil when the queue is drained
func (q *workQueue) claim() *models.BatchQueueItem {
	item, ok := <-q.items
	if !ok {
		return nil
	}
	return item
}

// partition splits addresses into ordered batches of at most batchSize.
// Batch count is ceil(len(addresses) / batchSize).
func partition(addresses []common.Address, batchSize int, scheduledAt time.Time) []*models.BatchQueueItem {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	items := make([]*models.BatchQueueItem, 0, (len(addresses)+batchSize-1)/batchSize)
	for start := 0; start < len(addresses); start += batchSize {
		end := start + batchSize
		if end > len(addresses) {
			end = len(addresses)
		}
		items = append(items, &models.BatchQueueItem{
			ID:          utils.GenerateID(),
			Contracts:   addresses[start:end],
			BatchIndex:  len(items),
			CreatedAt:   time.Now(),
			ScheduledAt: scheduledAt,
		})
	}
	return items
}
