package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	svcerr "github.com/chaintrace/registry/internal/errors"
	"github.com/chaintrace/registry/internal/registry"
)

// Contract event names emitted by the registry contract.
const (
	EventProductMinted        = "ProductMinted"
	EventProductStatusChanged = "ProductStatusChanged"
)

// RegistryContract binds the on-chain product registry contract.
// State-changing methods are signed by the node's configured account.
type RegistryContract struct {
	client        *Client
	contractHash  string
	signerAccount string
}

// NewRegistryContract creates a binding for the registry contract.
// signerAccount is the script hash of the node-managed signing account.
func NewRegistryContract(client *Client, contractHash, signerAccount string) *RegistryContract {
	return &RegistryContract{
		client:        client,
		contractHash:  contractHash,
		signerAccount: signerAccount,
	}
}

// Hash returns the bound contract script hash.
func (r *RegistryContract) Hash() string { return r.contractHash }

func (r *RegistryContract) signers() []Signer {
	return []Signer{{Account: r.signerAccount, Scopes: "CalledByEntry"}}
}

// MintResult reports a confirmed mint.
type MintResult struct {
	ProductID uint64
	TxHash    string
}

// SubmitMint broadcasts a mintProduct transaction without waiting for
// inclusion. Contract guard faults surface here from the test run.
func (r *RegistryContract) SubmitMint(ctx context.Context, in registry.CreateInput) (string, error) {
	params := []ContractParam{
		NewStringParam(in.BatchID),
		NewStringParam(in.Certification),
		NewStringParam(in.Origin),
		NewIntegerParam(big.NewInt(in.CreatedAt)),
	}
	tx, err := r.client.InvokeFunctionAndWait(ctx, r.contractHash, "mintProduct", params, r.signers(), false)
	if err != nil {
		return "", r.mapError(err)
	}
	return tx.TxHash, nil
}

// ConfirmMint waits for a broadcast mint to execute and reads the assigned
// product id from the ProductMinted notification.
func (r *RegistryContract) ConfirmMint(ctx context.Context, txHash string) (*MintResult, error) {
	appLog, err := r.waitHalted(ctx, "mintProduct", txHash)
	if err != nil {
		return nil, err
	}
	minted, err := r.findMintedEvent(appLog)
	if err != nil {
		return nil, err
	}
	return &MintResult{ProductID: minted.ProductID, TxHash: txHash}, nil
}

// SubmitVerify broadcasts a verifyProduct transaction without waiting.
func (r *RegistryContract) SubmitVerify(ctx context.Context, id uint64) (string, error) {
	return r.submitTransition(ctx, "verifyProduct", id)
}

// SubmitFinalize broadcasts a finalizeProduct transaction without waiting.
func (r *RegistryContract) SubmitFinalize(ctx context.Context, id uint64) (string, error) {
	return r.submitTransition(ctx, "finalizeProduct", id)
}

// ConfirmTransition waits for a broadcast transition to execute.
func (r *RegistryContract) ConfirmTransition(ctx context.Context, txHash string) error {
	_, err := r.waitHalted(ctx, "transition", txHash)
	return err
}

// MintProduct submits a mintProduct transaction and waits for execution.
func (r *RegistryContract) MintProduct(ctx context.Context, in registry.CreateInput) (*MintResult, error) {
	txHash, err := r.SubmitMint(ctx, in)
	if err != nil {
		return nil, err
	}
	return r.ConfirmMint(ctx, txHash)
}

// VerifyProduct submits a verifyProduct transaction and waits for execution.
func (r *RegistryContract) VerifyProduct(ctx context.Context, id uint64) (string, error) {
	return r.transitionAndWait(ctx, r.SubmitVerify, id)
}

// FinalizeProduct submits a finalizeProduct transaction and waits for execution.
func (r *RegistryContract) FinalizeProduct(ctx context.Context, id uint64) (string, error) {
	return r.transitionAndWait(ctx, r.SubmitFinalize, id)
}

func (r *RegistryContract) transitionAndWait(ctx context.Context, submit func(context.Context, uint64) (string, error), id uint64) (string, error) {
	txHash, err := submit(ctx, id)
	if err != nil {
		return "", err
	}
	if err := r.ConfirmTransition(ctx, txHash); err != nil {
		return txHash, err
	}
	return txHash, nil
}

func (r *RegistryContract) submitTransition(ctx context.Context, method string, id uint64) (string, error) {
	params := []ContractParam{
		NewIntegerParam(new(big.Int).SetUint64(id)),
	}
	tx, err := r.client.InvokeFunctionAndWait(ctx, r.contractHash, method, params, r.signers(), false)
	if err != nil {
		return "", r.mapError(err)
	}
	return tx.TxHash, nil
}

// waitHalted polls the application log and verifies the execution halted.
func (r *RegistryContract) waitHalted(ctx context.Context, method, txHash string) (*ApplicationLog, error) {
	wctx, cancel := context.WithTimeout(ctx, DefaultTxWaitTimeout)
	defer cancel()

	appLog, err := r.client.WaitForApplicationLog(wctx, txHash, DefaultPollInterval)
	if err != nil {
		return nil, r.mapError(fmt.Errorf("wait for %s execution: %w", method, err))
	}
	for _, exec := range appLog.Executions {
		if exec.VMState != "HALT" {
			return nil, r.mapError(&ExecutionError{Method: method, Exception: exec.Exception})
		}
	}
	return appLog, nil
}

// GetProduct reads a product record via a test invocation of getProductById.
// The contract returns a struct of (batchId, certification, origin,
// timestamp, owner, status).
func (r *RegistryContract) GetProduct(ctx context.Context, id uint64) (registry.Product, error) {
	params := []ContractParam{
		NewIntegerParam(new(big.Int).SetUint64(id)),
	}

	result, err := r.client.InvokeFunction(ctx, r.contractHash, "getProductById", params, nil)
	if err != nil {
		return registry.Product{}, r.mapError(err)
	}
	if result.State != "HALT" {
		return registry.Product{}, r.mapError(&ExecutionError{Method: "getProductById", Exception: result.Exception})
	}
	if len(result.Stack) == 0 {
		return registry.Product{}, fmt.Errorf("getProductById: empty stack")
	}

	return parseProductItem(result.Stack[0], id)
}

// TotalProducts returns the number of products minted so far. Ids are
// assigned densely from 1, so this is also the highest assigned id.
func (r *RegistryContract) TotalProducts(ctx context.Context) (uint64, error) {
	result, err := r.client.InvokeFunction(ctx, r.contractHash, "totalProducts", nil, nil)
	if err != nil {
		return 0, r.mapError(err)
	}
	if result.State != "HALT" {
		return 0, r.mapError(&ExecutionError{Method: "totalProducts", Exception: result.Exception})
	}
	if len(result.Stack) == 0 {
		return 0, fmt.Errorf("totalProducts: empty stack")
	}

	n, err := ParseInteger(result.Stack[0])
	if err != nil {
		return 0, fmt.Errorf("parse totalProducts: %w", err)
	}
	return n.Uint64(), nil
}

func parseProductItem(item StackItem, id uint64) (registry.Product, error) {
	items, err := ParseArray(item)
	if err != nil {
		return registry.Product{}, fmt.Errorf("parse product: %w", err)
	}
	if len(items) < 6 {
		return registry.Product{}, fmt.Errorf("parse product: expected 6 items, got %d", len(items))
	}

	batchID, err := ParseString(items[0])
	if err != nil {
		return registry.Product{}, fmt.Errorf("parse batchId: %w", err)
	}
	certification, err := ParseString(items[1])
	if err != nil {
		return registry.Product{}, fmt.Errorf("parse certification: %w", err)
	}
	origin, err := ParseString(items[2])
	if err != nil {
		return registry.Product{}, fmt.Errorf("parse origin: %w", err)
	}
	timestamp, err := ParseInteger(items[3])
	if err != nil {
		return registry.Product{}, fmt.Errorf("parse timestamp: %w", err)
	}
	owner, err := ParseHash160(items[4])
	if err != nil {
		return registry.Product{}, fmt.Errorf("parse owner: %w", err)
	}
	status, err := ParseInteger(items[5])
	if err != nil {
		return registry.Product{}, fmt.Errorf("parse status: %w", err)
	}

	return registry.Product{
		ID:            id,
		BatchID:       batchID,
		Certification: certification,
		Origin:        origin,
		CreatedAt:     timestamp.Int64(),
		Owner:         owner,
		Status:        registry.Status(status.Uint64()),
	}, nil
}

func (r *RegistryContract) findMintedEvent(appLog *ApplicationLog) (*ProductMintedEvent, error) {
	if appLog == nil {
		return nil, fmt.Errorf("mintProduct: no application log")
	}
	for _, exec := range appLog.Executions {
		for _, n := range exec.Notifications {
			if !equalHash(n.Contract, r.contractHash) || n.EventName != EventProductMinted {
				continue
			}
			ev, err := ParseProductMinted(n)
			if err != nil {
				return nil, err
			}
			return ev, nil
		}
	}
	return nil, fmt.Errorf("mintProduct: no %s notification", EventProductMinted)
}

// mapError converts node and VM failures into the service error taxonomy.
// Transport failures become connection errors; contract guard faults are
// classified by the exception text the contract raises.
func (r *RegistryContract) mapError(err error) error {
	if err == nil {
		return nil
	}

	var transport *TransportError
	if errors.As(err, &transport) {
		return svcerr.Connection("ledger node unreachable", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return svcerr.Connection("confirmation timed out", err)
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return svcerr.Connection("ledger node error", err)
	}

	var exec *ExecutionError
	if errors.As(err, &exec) {
		msg := strings.ToLower(exec.Exception)
		switch {
		case strings.Contains(msg, "does not exist"), strings.Contains(msg, "not found"):
			return svcerr.NotFound(exec.Exception)
		case strings.Contains(msg, "only "), strings.Contains(msg, "authorized"), strings.Contains(msg, "witness"):
			return svcerr.Unauthorized(exec.Exception)
		case strings.Contains(msg, "status"), strings.Contains(msg, "already"):
			return svcerr.InvalidTransition(exec.Exception)
		}
		return svcerr.Internal(exec.Exception, exec)
	}

	return err
}
