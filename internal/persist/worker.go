package persist

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"ctakline/internal/store"
)

// DefaultQueueCapacity bounds the worker's task queue. Producers enqueue
// non-blockingly; once full, a task is dropped and logged (spec.md §4.6 /
// §7 QueueFull) -- the upsert-by-key contract means a dropped write is
// recovered by the next tick targeting the same bucket.
const DefaultQueueCapacity = 4096

// Worker is the single long-lived persistence writer (C6). It owns one
// store connection and serially executes tasks pulled off its queue; the
// tick-processing path never blocks on it.
type Worker struct {
	store store.Store
	queue chan Task
	log   *slog.Logger

	done chan struct{}
	once sync.Once
}

// NewWorker starts the worker goroutine immediately (mirroring
// init_db_write_process's eager process start) and returns once it is
// ready to accept tasks.
func NewWorker(s store.Store, log *slog.Logger, capacity int) *Worker {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if log == nil {
		log = slog.Default()
	}
	w := &Worker{
		store: s,
		queue: make(chan Task, capacity),
		log:   log,
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue submits a task without blocking. If the queue is full the task
// is dropped and a QueueFull warning is logged; this is deliberately not
// an error return, matching spec.md §7's classification of QueueFull as a
// logged-and-continue condition.
func (w *Worker) Enqueue(t Task) {
	select {
	case w.queue <- t:
	default:
		w.log.Warn("persistence queue full, dropping task",
			"kind", t.Kind, "db", t.DB, "symbol", t.Symbol,
			"queue_depth", humanize.Comma(int64(len(w.queue))))
	}
}

// Stop enqueues the sentinel stop task and blocks until the worker drains
// its queue and exits. In-flight tasks complete before Stop returns.
func (w *Worker) Stop() {
	w.once.Do(func() {
		w.queue <- stopTask()
	})
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	ctx := context.Background()

	for task := range w.queue {
		switch task.Kind {
		case KindStop:
			return
		case KindUpsertTick:
			if err := w.store.UpsertTick(ctx, task.DB, task.Symbol, task.Tick); err != nil {
				w.log.Error("tick persistence failed", "db", task.DB, "symbol", task.Symbol, "error", err)
			}
		case KindUpsertBar:
			if err := w.store.UpsertBar(ctx, task.DB, task.Symbol, task.Bar); err != nil {
				w.log.Error("bar persistence failed", "db", task.DB, "symbol", task.Symbol, "bar", task.Bar.String(), "error", err)
			}
		default:
			w.log.Error("unrecognized persistence task kind", "kind", task.Kind)
		}
	}
}
