// Package aitest provides a deterministic completer for tests.
package aitest

import (
	"context"
	"fmt"
	"sync"

	"github.com/spigell/interviewd/internal/ai"
)

type response struct {
	text string
	err  error
}

// Scripted answers requests from per-task queues. When a queue is empty the task default is
// used, and when no default exists the request fails with ai.ErrGenerationUnavailable.
type Scripted struct {
	mu       sync.Mutex
	queue    map[string][]response
	defaults map[string]response
	requests []ai.Request
}

func New() *Scripted {
	return &Scripted{
		queue:    make(map[string][]response),
		defaults: make(map[string]response),
	}
}

// Enqueue adds a one-shot answer for the task.
func (s *Scripted) Enqueue(task, text string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[task] = append(s.queue[task], response{text: text})
	return s
}

// EnqueueError adds a one-shot failure for the task.
func (s *Scripted) EnqueueError(task string, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[task] = append(s.queue[task], response{err: err})
	return s
}

// Default sets the answer used once the task queue is drained.
func (s *Scripted) Default(task, text string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[task] = response{text: text}
	return s
}

// Fail makes every request of the task fail once its queue is drained.
func (s *Scripted) Fail(task string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[task] = response{err: fmt.Errorf("%w: scripted failure", ai.ErrGenerationUnavailable)}
	return s
}

func (s *Scripted) Complete(ctx context.Context, req ai.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if q := s.queue[req.Task]; len(q) > 0 {
		s.queue[req.Task] = q[1:]
		return q[0].text, q[0].err
	}

	if d, ok := s.defaults[req.Task]; ok {
		return d.text, d.err
	}

	return "", fmt.Errorf("%w: no scripted answer for task %q", ai.ErrGenerationUnavailable, req.Task)
}

// Requests returns a copy of all received requests.
func (s *Scripted) Requests() []ai.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ai.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests had the given task.
func (s *Scripted) Count(task string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Task == task {
			n++
		}
	}
	return n
}
