package ledger

import (
	"context"
	"sync"
	"time"
)

// Pending is a handle to a submitted transition. It resolves exactly once,
// to either the confirmed result or a terminal error.
type Pending struct {
	id          string
	operation   string
	submittedAt time.Time

	once   sync.Once
	done   chan struct{}
	result Result
	err    error
}

// ID returns the submission id.
func (p *Pending) ID() string { return p.id }

// Operation returns the submitted operation name.
func (p *Pending) Operation() string { return p.operation }

// SubmittedAt returns the submission time.
func (p *Pending) SubmittedAt() time.Time { return p.submittedAt }

// Done is closed when the submission reaches a terminal state.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Resolved reports whether the submission has reached a terminal state.
func (p *Pending) Resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the submission resolves or ctx is done. Returning on a
// done context abandons the handle only; the submission itself proceeds.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-p.done:
		return p.result, p.err
	}
}

// Outcome returns the terminal result without blocking. ok is false while
// the submission is still pending.
func (p *Pending) Outcome() (result Result, err error, ok bool) {
	if !p.Resolved() {
		return Result{}, nil, false
	}
	return p.result, p.err, true
}

func (p *Pending) resolve(result Result, err error) {
	p.once.Do(func() {
		p.result = result
		p.err = err
		close(p.done)
	})
}
