package queue

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	failures []string
}

func (s *recordingSink) ReportFailure(_ any, name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, name+": "+err.Error())
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures)
}

// manualJob records its start and parks its continuation for the test to fire.
type manualJob struct {
	name    string
	started *[]string
	done    Done
}

func (m *manualJob) job() Job {
	return Job{Name: m.name, Run: func(done Done) {
		*m.started = append(*m.started, m.name)
		m.done = done
	}}
}

func TestSameKeyRunsInEnqueueOrder(t *testing.T) {
	q := New(nil)
	var started []string

	first := &manualJob{name: "first", started: &started}
	second := &manualJob{name: "second", started: &started}
	third := &manualJob{name: "third", started: &started}

	q.Enqueue(int64(1), first.job())
	q.Enqueue(int64(1), second.job())
	q.Enqueue(int64(1), third.job())

	require.Equal(t, []string{"first"}, started)
	require.Equal(t, 2, q.Pending(int64(1)))

	first.done("ok", nil)
	require.Equal(t, []string{"first", "second"}, started)

	second.done(nil, nil)
	require.Equal(t, []string{"first", "second", "third"}, started)
	require.True(t, q.Active(int64(1)))

	third.done(nil, nil)
	require.False(t, q.Active(int64(1)))
	require.Zero(t, q.Len())
}

func TestDifferentKeysRunIndependently(t *testing.T) {
	q := New(nil)
	var started []string

	a := &manualJob{name: "a", started: &started}
	b := &manualJob{name: "b", started: &started}

	q.Enqueue(int64(1), a.job())
	q.Enqueue(int64(2), b.job())
	require.Equal(t, []string{"a", "b"}, started)
	require.Equal(t, 2, q.Len())

	b.done(nil, nil)
	a.done(nil, nil)
	require.Zero(t, q.Len())
}

func TestFailureWithoutHookIsReportedOnce(t *testing.T) {
	sink := &recordingSink{}
	q := New(sink)

	ran := false
	q.Enqueue("chat", Job{Name: "sendMessage", Run: func(done Done) {
		done(nil, errors.New("boom"))
	}})
	q.Enqueue("chat", Job{Name: "sendPhoto", Run: func(done Done) {
		ran = true
		done(nil, nil)
	}})

	require.True(t, ran)
	require.Equal(t, 1, sink.count())
	require.Equal(t, []string{"sendMessage: boom"}, sink.failures)
	require.Zero(t, q.Len())
}

func TestHookOwnsContinuation(t *testing.T) {
	sink := &recordingSink{}
	q := New(sink)
	wantErr := errors.New("rate limited")

	var (
		gotErr    error
		gotResult any
		release   func()
		order     []string
	)
	q.Enqueue(7, Job{
		Name: "sendMessage",
		Run:  func(done Done) { done("partial", wantErr) },
		Then: func(result any, err error, next func()) {
			gotResult, gotErr, release = result, err, next
			order = append(order, "hook")
		},
	})
	q.Enqueue(7, Job{Name: "after", Run: func(done Done) {
		order = append(order, "after")
		done(nil, nil)
	}})

	require.ErrorIs(t, gotErr, wantErr)
	require.Equal(t, "partial", gotResult)
	require.Equal(t, []string{"hook"}, order)
	require.Zero(t, sink.count())

	release()
	release()
	require.Equal(t, []string{"hook", "after"}, order)
	require.Zero(t, q.Len())
}

func TestHookCanChainBeforeNextItem(t *testing.T) {
	q := New(nil)
	var order []string

	q.Enqueue(1, Job{
		Name: "first",
		Run:  func(done Done) { order = append(order, "first"); done(nil, nil) },
		Then: func(_ any, _ error, next func()) {
			// Chained work on a private key completes before the shared queue moves on.
			q.Enqueue(NewPrivateKey(), Job{Name: "chained", Run: func(done Done) {
				order = append(order, "chained")
				done(nil, nil)
			}})
			next()
		},
	})
	q.Enqueue(1, Job{Name: "second", Run: func(done Done) { order = append(order, "second"); done(nil, nil) }})

	require.Equal(t, []string{"first", "chained", "second"}, order)
}

func TestImmediateBypassesSerialization(t *testing.T) {
	q := New(nil, WithImmediate(true))
	var started []string

	a := &manualJob{name: "a", started: &started}
	b := &manualJob{name: "b", started: &started}
	q.Enqueue(1, a.job())
	q.Enqueue(1, b.job())

	require.Equal(t, []string{"a", "b"}, started)
	require.Zero(t, q.Len())
}

func TestDuplicateCompletionIsIgnored(t *testing.T) {
	sink := &recordingSink{}
	q := New(sink)
	var started []string

	first := &manualJob{name: "first", started: &started}
	second := &manualJob{name: "second", started: &started}
	third := &manualJob{name: "third", started: &started}
	q.Enqueue(1, first.job())
	q.Enqueue(1, second.job())
	q.Enqueue(1, third.job())

	first.done(nil, errors.New("x"))
	first.done(nil, errors.New("x"))

	require.Equal(t, []string{"first", "second"}, started)
	require.Equal(t, 1, sink.count())
}

func TestPrivateKeysAreDistinct(t *testing.T) {
	q := New(nil)
	var started []string

	a := &manualJob{name: "a", started: &started}
	b := &manualJob{name: "b", started: &started}
	q.Enqueue(NewPrivateKey(), a.job())
	q.Enqueue(NewPrivateKey(), b.job())

	require.Equal(t, []string{"a", "b"}, started)
	require.NotEqual(t, NewPrivateKey().String(), NewPrivateKey().String())
}

func TestConcurrentCompletionsKeepOrder(t *testing.T) {
	q := New(nil)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	const jobs = 50
	wg.Add(jobs)
	for i := 0; i < jobs; i++ {
		i := i
		q.Enqueue("shared", Job{Name: "job", Run: func(done Done) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			go func() {
				defer wg.Done()
				done(nil, nil)
			}()
		}})
	}
	wg.Wait()

	require.Len(t, order, jobs)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}
