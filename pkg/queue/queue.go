package queue

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Done completes one job. It must be called exactly once.
type Done func(result any, err error)

// Task starts an asynchronous operation and reports its outcome through done.
type Task func(done Done)

// Hook receives a job's outcome and must call next to release the queue.
type Hook func(result any, err error, next func())

// Job is one unit of outbound work.
type Job struct {
	// Name identifies the job in failure reports, usually the remote method.
	Name string
	Run  Task
	// Then, when set, owns the job's outcome including failures.
	Then Hook
}

// ErrorSink receives failures of jobs that have no hook.
type ErrorSink interface {
	ReportFailure(key any, name string, err error)
}

// Queue serializes jobs sharing a destination key. Jobs with different keys
// run independently.
type Queue struct {
	sink      ErrorSink
	immediate bool
	log       *slog.Logger

	mu    sync.Mutex
	dests map[any]*destination
}

// destination holds the jobs waiting behind the one in flight.
type destination struct {
	pending []Job
}

// Option configures a Queue.
type Option func(*Queue)

// WithImmediate makes every job run at once with no serialization.
func WithImmediate(immediate bool) Option {
	return func(q *Queue) { q.immediate = immediate }
}

// WithLogger sets the logger used for misuse diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(q *Queue) {
		if log != nil {
			q.log = log
		}
	}
}

// New creates a queue reporting unhandled failures to sink. A nil sink drops them.
func New(sink ErrorSink, opts ...Option) *Queue {
	q := &Queue{
		sink:  sink,
		log:   slog.Default(),
		dests: make(map[any]*destination),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.log = q.log.With("component", "queue")

	return q
}

// Enqueue appends job to the queue identified by key. If nothing is in flight
// for key the job starts immediately, otherwise once every earlier job for key
// has completed. key must be comparable.
func (q *Queue) Enqueue(key any, job Job) {
	if job.Run == nil {
		q.log.Warn("Ignoring job without task", "key", key, "job", job.Name)
		return
	}

	if q.immediate {
		q.launch(key, job, func() {})
		return
	}

	q.mu.Lock()
	dest, busy := q.dests[key]
	if busy {
		dest.pending = append(dest.pending, job)
		q.mu.Unlock()
		return
	}
	q.dests[key] = &destination{}
	q.mu.Unlock()

	q.launch(key, job, func() { q.advance(key) })
}

// Pending returns how many jobs wait behind the one in flight for key.
func (q *Queue) Pending(key any) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dest, ok := q.dests[key]
	if !ok {
		return 0
	}
	return len(dest.pending)
}

// Active reports whether key has a job in flight.
func (q *Queue) Active(key any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.dests[key]
	return ok
}

// Len returns the number of destinations with work in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.dests)
}

func (q *Queue) launch(key any, job Job, release func()) {
	var once sync.Once
	job.Run(func(result any, err error) {
		fired := false
		once.Do(func() { fired = true })
		if !fired {
			q.log.Warn("Job completed more than once", "key", key, "job", job.Name)
			return
		}

		if job.Then != nil {
			var nextOnce sync.Once
			job.Then(result, err, func() { nextOnce.Do(release) })
			return
		}

		if err != nil && q.sink != nil {
			q.sink.ReportFailure(key, job.Name, err)
		}
		release()
	})
}

// advance starts the next job for key or retires the destination.
func (q *Queue) advance(key any) {
	q.mu.Lock()
	dest, ok := q.dests[key]
	if !ok {
		q.mu.Unlock()
		return
	}
	if len(dest.pending) == 0 {
		delete(q.dests, key)
		q.mu.Unlock()
		return
	}

	next := dest.pending[0]
	dest.pending[0] = Job{}
	dest.pending = dest.pending[1:]
	q.mu.Unlock()

	q.launch(key, next, func() { q.advance(key) })
}

// Key is an opaque handle for a private queue not shared with other callers.
type Key struct {
	id string
}

// NewPrivateKey returns a fresh key distinct from every other key.
func NewPrivateKey() *Key {
	return &Key{id: uuid.NewString()}
}

func (k *Key) String() string {
	return "private:" + k.id
}
