// Package ledger submits lifecycle transitions for durable commitment and
// hands back pending handles that resolve on confirmation.
//
// Submission is the synchronous phase: guard and validation failures are
// detected here and no pending handle is produced. Once a submission is
// accepted it runs to its terminal outcome even if every handle to it is
// abandoned; a pending is never auto-retried, and transport failures during
// confirmation resolve the pending with a connection error.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chaintrace/registry/internal/metrics"
	"github.com/chaintrace/registry/internal/registry"
	"github.com/chaintrace/registry/pkg/logger"
)

// Result is the confirmed outcome of a submission.
type Result struct {
	Product registry.Product `json:"product"`
	TxHash  string           `json:"tx_hash,omitempty"`
}

// Submission is the confirmation phase of an accepted operation. It blocks
// until the backend has durably committed and returns the final state.
type Submission func(ctx context.Context) (Result, error)

// Backend durably applies transitions. SubmitX validates and submits the
// operation synchronously; the returned Submission observes the commit.
type Backend interface {
	SubmitCreate(ctx context.Context, caller registry.Caller, in registry.CreateInput) (Submission, error)
	SubmitVerify(ctx context.Context, caller registry.Caller, id uint64) (Submission, error)
	SubmitFinalize(ctx context.Context, caller registry.Caller, id uint64) (Submission, error)
}

// retention is how long resolved submissions stay queryable.
const retention = time.Hour

// Client tracks in-flight and recently resolved submissions.
type Client struct {
	backend Backend
	log     *logger.Logger
	metrics *metrics.Metrics

	mu   sync.RWMutex
	subs map[string]*Pending
}

// NewClient creates a ledger client over the given backend.
func NewClient(backend Backend, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Client{
		backend: backend,
		log:     log,
		subs:    make(map[string]*Pending),
	}
}

// WithMetrics sets the submission metrics recorder.
func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.metrics = m
	return c
}

// SubmitCreate submits a product creation.
func (c *Client) SubmitCreate(ctx context.Context, caller registry.Caller, in registry.CreateInput) (*Pending, error) {
	confirm, err := c.backend.SubmitCreate(ctx, caller, in)
	if err != nil {
		return nil, err
	}
	return c.track(ctx, "create", confirm), nil
}

// SubmitVerify submits a verify transition.
func (c *Client) SubmitVerify(ctx context.Context, caller registry.Caller, id uint64) (*Pending, error) {
	confirm, err := c.backend.SubmitVerify(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return c.track(ctx, "verify", confirm), nil
}

// SubmitFinalize submits a finalize transition.
func (c *Client) SubmitFinalize(ctx context.Context, caller registry.Caller, id uint64) (*Pending, error) {
	confirm, err := c.backend.SubmitFinalize(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return c.track(ctx, "finalize", confirm), nil
}

// Submission returns a tracked submission by id.
func (c *Client) Submission(id string) (*Pending, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.subs[id]
	return p, ok
}

// track registers a pending and resolves it in the background. The
// confirmation context is detached from the caller's so an abandoned
// handle cannot abort a submitted transition.
func (c *Client) track(ctx context.Context, operation string, confirm Submission) *Pending {
	p := &Pending{
		id:          uuid.NewString(),
		operation:   operation,
		submittedAt: time.Now().UTC(),
		done:        make(chan struct{}),
	}

	c.mu.Lock()
	c.prune()
	c.subs[p.id] = p
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.PendingSubmissionStarted()
	}

	go func(ctx context.Context) {
		result, err := confirm(ctx)
		p.resolve(result, err)

		if c.metrics != nil {
			c.metrics.PendingSubmissionResolved(operation, time.Since(p.submittedAt))
		}
		log := c.log.WithContext(ctx).
			WithField("submission_id", p.id).
			WithField("operation", operation)
		if err != nil {
			log.WithError(err).Warn("submission failed")
			return
		}
		log.WithField("product_id", result.Product.ID).Info("submission confirmed")
	}(context.WithoutCancel(ctx))

	return p
}

// prune drops resolved submissions past retention. Caller holds c.mu.
func (c *Client) prune() {
	cutoff := time.Now().Add(-retention)
	for id, p := range c.subs {
		if p.Resolved() && p.submittedAt.Before(cutoff) {
			delete(c.subs, id)
		}
	}
}
