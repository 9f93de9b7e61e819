package questions

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spigell/interviewd/internal/interview"
)

//go:embed pool.json
var poolData []byte

// Pool is the local fallback. It only fails when it holds no problems at all.
type Pool struct {
	mu       sync.Mutex
	problems map[interview.Difficulty][]Problem
	next     map[interview.Difficulty]int
}

// NewPool loads the embedded problem set.
func NewPool() (*Pool, error) {
	var problems []Problem
	if err := json.Unmarshal(poolData, &problems); err != nil {
		return nil, fmt.Errorf("decode fallback pool: %w", err)
	}
	return NewPoolFrom(problems), nil
}

// NewPoolFrom builds a pool from the given problems.
func NewPoolFrom(problems []Problem) *Pool {
	p := &Pool{
		problems: make(map[interview.Difficulty][]Problem),
		next:     make(map[interview.Difficulty]int),
	}
	for _, prob := range problems {
		prob.Source = SourcePool
		p.problems[prob.Difficulty] = append(p.problems[prob.Difficulty], prob)
	}
	return p
}

func (p *Pool) Name() string { return SourcePool }

// Supply prefers the requested difficulty, then easier ones, then harder ones. Excluded
// problems are repeated only when every problem was already used.
func (p *Pool) Supply(_ context.Context, req Request) (*Problem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order := searchOrder(req.Difficulty)

	for _, d := range order {
		for _, prob := range p.problems[d] {
			if !req.excluded(prob.ID) {
				out := prob
				return &out, nil
			}
		}
	}

	for _, d := range order {
		if list := p.problems[d]; len(list) > 0 {
			out := list[p.next[d]%len(list)]
			p.next[d]++
			return &out, nil
		}
	}

	return nil, fmt.Errorf("%w: fallback pool is empty", ErrSupplierUnavailable)
}

func searchOrder(d interview.Difficulty) []interview.Difficulty {
	if d.Level() < 0 {
		d = interview.DifficultyMedium
	}

	order := []interview.Difficulty{d}
	for cur := d; cur.Level() > 0; {
		cur = cur.Easier()
		order = append(order, cur)
	}
	for cur := d; cur != interview.DifficultyHard; {
		cur = cur.Harder()
		order = append(order, cur)
	}
	return order
}
