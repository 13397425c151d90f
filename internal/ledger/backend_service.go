package ledger

import (
	"context"

	"github.com/chaintrace/registry/internal/registry"
)

// ServiceBackend commits transitions directly through the registry state
// machine. The store write is the durable commit, so the whole operation
// completes during submission and the pending resolves immediately.
type ServiceBackend struct {
	svc *registry.Service
}

// NewServiceBackend wraps the registry service as a ledger backend.
func NewServiceBackend(svc *registry.Service) *ServiceBackend {
	return &ServiceBackend{svc: svc}
}

// SubmitCreate implements Backend.
func (b *ServiceBackend) SubmitCreate(ctx context.Context, caller registry.Caller, in registry.CreateInput) (Submission, error) {
	p, err := b.svc.Create(ctx, caller, in)
	if err != nil {
		return nil, err
	}
	return resolved(p), nil
}

// SubmitVerify implements Backend.
func (b *ServiceBackend) SubmitVerify(ctx context.Context, caller registry.Caller, id uint64) (Submission, error) {
	p, err := b.svc.Verify(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return resolved(p), nil
}

// SubmitFinalize implements Backend.
func (b *ServiceBackend) SubmitFinalize(ctx context.Context, caller registry.Caller, id uint64) (Submission, error) {
	p, err := b.svc.Finalize(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return resolved(p), nil
}

func resolved(p registry.Product) Submission {
	return func(context.Context) (Result, error) {
		return Result{Product: p}, nil
	}
}
