package taskqueue

import (
	"context"
	"time"

	"creator-insights/internal/domain/entity"
)

// item is one queued unit of work. The entity.Task snapshot is what Poll
// returns; the job closure is what a worker executes.
type item struct {
	task      *entity.Task
	job       Job
	timeout   time.Duration
	seq       uint64
	index     int
	cancel    context.CancelFunc
	cancelled bool
}

// taskHeap orders items highest priority first, FIFO within a priority.
// It implements container/heap.Interface; all access is guarded by Queue.mu.
type taskHeap []*item

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}
