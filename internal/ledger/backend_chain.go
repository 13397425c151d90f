package ledger

import (
	"context"
	"fmt"

	"github.com/chaintrace/registry/internal/chain"
	"github.com/chaintrace/registry/internal/errors"
	"github.com/chaintrace/registry/internal/registry"
)

// ChainBackend commits transitions through the on-chain registry contract.
// Submission broadcasts the transaction; guard faults from the node's test
// run surface synchronously. Confirmation is the application log for the
// included transaction.
type ChainBackend struct {
	contract *chain.RegistryContract
}

// NewChainBackend wraps the registry contract as a ledger backend.
func NewChainBackend(contract *chain.RegistryContract) *ChainBackend {
	return &ChainBackend{contract: contract}
}

// SubmitCreate implements Backend.
func (b *ChainBackend) SubmitCreate(ctx context.Context, caller registry.Caller, in registry.CreateInput) (Submission, error) {
	if err := guardRole(caller, registry.RoleManufacturer, "create"); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	in = in.Normalized()

	txHash, err := b.contract.SubmitMint(ctx, in)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (Result, error) {
		minted, err := b.contract.ConfirmMint(ctx, txHash)
		if err != nil {
			return Result{}, err
		}
		return b.readBack(ctx, minted.ProductID, txHash)
	}, nil
}

// SubmitVerify implements Backend.
func (b *ChainBackend) SubmitVerify(ctx context.Context, caller registry.Caller, id uint64) (Submission, error) {
	return b.submitTransition(ctx, caller, registry.RoleDistributor, "verify", b.contract.SubmitVerify, id)
}

// SubmitFinalize implements Backend.
func (b *ChainBackend) SubmitFinalize(ctx context.Context, caller registry.Caller, id uint64) (Submission, error) {
	return b.submitTransition(ctx, caller, registry.RoleRetailer, "finalize", b.contract.SubmitFinalize, id)
}

func (b *ChainBackend) submitTransition(ctx context.Context, caller registry.Caller, required registry.Role, op string, submit func(context.Context, uint64) (string, error), id uint64) (Submission, error) {
	if err := guardRole(caller, required, op); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, errors.Validation("product id must be positive")
	}

	txHash, err := submit(ctx, id)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (Result, error) {
		if err := b.contract.ConfirmTransition(ctx, txHash); err != nil {
			return Result{}, err
		}
		return b.readBack(ctx, id, txHash)
	}, nil
}

func (b *ChainBackend) readBack(ctx context.Context, id uint64, txHash string) (Result, error) {
	product, err := b.contract.GetProduct(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("read back product %d: %w", id, err)
	}
	return Result{Product: product, TxHash: txHash}, nil
}

// guardRole mirrors the state machine's role gate so unauthorized callers
// are rejected before any node round trip. The contract enforces the same
// rule with its witness check.
func guardRole(caller registry.Caller, required registry.Role, op string) error {
	if caller.Role != required {
		return errors.Unauthorized(fmt.Sprintf("only a %s may %s products", required, op))
	}
	return nil
}
