package tts

import (
	"container/heap"
	"context"
	"sync"

	"go.uber.org/zap"
)

// Event names emitted toward the host.
const (
	EventAudioReady = "tts://audioReady"
	EventError      = "tts://error"
)

// Task is one synthesis request. Identity for dedup and cancel is the
// (BookKey, CFIRange) pair; higher priority runs sooner.
type Task struct {
	Priority int
	BookKey  string
	CFIRange string
	Text     string
	Voice    string
	Rate     float64

	seq uint64
}

// Emitter receives queue events. Payload maps are JSON-shaped for the
// host.
type Emitter func(event string, payload map[string]any)

// Status is a point-in-time queue snapshot.
type Status struct {
	Pending      int
	IsProcessing bool
	Active       int
}

// taskHeap orders by priority descending, insertion sequence ascending.
// Comparing by priority alone would make draining order
// non-deterministic under ties.
type taskHeap []Task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(Task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// Queue is the process-wide synthesis queue: one worker goroutine
// drains it strictly by priority, FIFO within a priority. The queue
// lock is held only to push, pop and drain, never across proxy or disk
// I/O.
type Queue struct {
	cache  *Cache
	client *Client
	emit   Emitter
	log    *zap.Logger

	mu           sync.Mutex
	cond         *sync.Cond
	heap         taskHeap
	seq          uint64
	isProcessing bool
	active       int
	closed       bool
	started      bool

	done chan struct{}
}

// NewQueue wires the queue to its cache, proxy client and event sink.
func NewQueue(cache *Cache, client *Client, emit Emitter, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	if emit == nil {
		emit = func(string, map[string]any) {}
	}
	q := &Queue{
		cache:  cache,
		client: client,
		emit:   emit,
		log:    log.Named("tts"),
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the worker. Safe to call more than once.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	go q.worker()
}

// Close stops the worker after the in-flight task, dropping pending
// tasks.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.heap = nil
	started := q.started
	q.cond.Broadcast()
	q.mu.Unlock()
	if started {
		<-q.done
	}
}

// Enqueue pushes a task and wakes the worker.
func (q *Queue) Enqueue(t Task) {
	q.Start()
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.seq++
	t.seq = q.seq
	heap.Push(&q.heap, t)
	q.cond.Signal()
}

// Cancel removes pending tasks matching the (book, cfi) identity and
// returns how many were dropped. In-flight work is not aborted.
func (q *Queue) Cancel(bookKey, cfiRange string) int {
	return q.drop(func(t Task) bool {
		return t.BookKey == bookKey && t.CFIRange == cfiRange
	})
}

// CancelAll removes every pending task of a book.
func (q *Queue) CancelAll(bookKey string) int {
	return q.drop(func(t Task) bool { return t.BookKey == bookKey })
}

func (q *Queue) drop(match func(Task) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.heap[:0]
	removed := 0
	for _, t := range q.heap {
		if match(t) {
			removed++
		} else {
			kept = append(kept, t)
		}
	}
	q.heap = kept
	heap.Init(&q.heap)
	return removed
}

// Status reports pending count, whether the worker is busy and how many
// tasks are actively synthesizing.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{Pending: len(q.heap), IsProcessing: q.isProcessing, Active: q.active}
}

// Request synthesizes synchronously: cache hit returns the path without
// touching the proxy, otherwise the audio is fetched and cached.
func (q *Queue) Request(ctx context.Context, t Task) (string, error) {
	return q.process(ctx, t)
}

func (q *Queue) process(ctx context.Context, t Task) (string, error) {
	if path, ok := q.cache.Lookup(t.BookKey, t.CFIRange); ok {
		return path, nil
	}
	audio, err := q.client.Fetch(ctx, t.Text, t.Voice, t.Rate)
	if err != nil {
		return "", err
	}
	return q.cache.Write(t.BookKey, t.CFIRange, audio)
}

// worker drains the heap until Close. A task failure emits tts://error
// and the loop proceeds; the worker itself never stops on task errors.
func (q *Queue) worker() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.heap) == 0 && !q.closed {
			q.isProcessing = false
			q.cond.Wait()
		}
		if q.closed {
			q.isProcessing = false
			q.mu.Unlock()
			return
		}
		q.isProcessing = true
		task := heap.Pop(&q.heap).(Task)
		q.active++
		q.mu.Unlock()

		path, err := q.process(context.Background(), task)

		q.mu.Lock()
		q.active--
		q.mu.Unlock()

		if err != nil {
			q.log.Warn("Synthesis failed",
				zap.String("book", task.BookKey),
				zap.String("cfi", task.CFIRange),
				zap.Error(err))
			q.emit(EventError, map[string]any{
				"bookId":   task.BookKey,
				"cfiRange": task.CFIRange,
				"error":    err.Error(),
			})
			continue
		}
		q.emit(EventAudioReady, map[string]any{
			"bookId":    task.BookKey,
			"cfiRange":  task.CFIRange,
			"audioPath": path,
		})
	}
}
