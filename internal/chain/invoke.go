package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// InvokeFunction invokes a contract function. With no signers this is a
// read-only test invocation; with signers the node builds, signs and
// broadcasts a transaction for its managed account.
func (c *Client) InvokeFunction(ctx context.Context, scriptHash string, method string, params []ContractParam, signers []Signer) (*InvokeResult, error) {
	args := []interface{}{scriptHash, method, params}
	if len(signers) > 0 {
		args = append(args, signers)
	}

	result, err := c.Call(ctx, "invokefunction", args)
	if err != nil {
		return nil, err
	}

	var invokeResult InvokeResult
	if err := json.Unmarshal(result, &invokeResult); err != nil {
		return nil, err
	}
	return &invokeResult, nil
}

// WaitForApplicationLog polls for a transaction application log until it is available or context is done.
// A missing transaction is treated as transient and retried until the context deadline/timeout expires.
func (c *Client) WaitForApplicationLog(ctx context.Context, txHash string, pollInterval time.Duration) (*ApplicationLog, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			log, err := c.GetApplicationLog(ctx, txHash)
			if err != nil {
				if isUnknownTransaction(err) {
					continue
				}
				return nil, err
			}
			return log, nil
		}
	}
}

// DefaultTxWaitTimeout is the default timeout for waiting for transaction execution.
const DefaultTxWaitTimeout = 2 * time.Minute

// DefaultPollInterval is the default interval for polling transaction status.
const DefaultPollInterval = 2 * time.Second

// ExecutionError reports a contract invocation that faulted in the VM.
// The exception text carries the contract's guard message.
type ExecutionError struct {
	Method    string
	Exception string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Method, e.Exception)
}

// InvokeFunctionAndWait invokes a contract function and optionally waits for execution.
// If wait is true, it waits for the transaction to be included in a block and returns the application log.
// If wait is false, it returns immediately after broadcasting with only the TxHash populated.
// Uses DefaultTxWaitTimeout (2 minutes) and DefaultPollInterval (2 seconds).
func (c *Client) InvokeFunctionAndWait(ctx context.Context, contractHash, method string, params []ContractParam, signers []Signer, wait bool) (*TxResult, error) {
	invokeResult, err := c.InvokeFunction(ctx, contractHash, method, params, signers)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", method, err)
	}

	if invokeResult.State != "HALT" {
		return nil, &ExecutionError{Method: method, Exception: invokeResult.Exception}
	}

	result := &TxResult{
		TxHash:  invokeResult.Tx,
		VMState: invokeResult.State,
	}

	if !wait {
		return result, nil
	}

	// Wait for transaction execution
	wctx, cancel := context.WithTimeout(ctx, DefaultTxWaitTimeout)
	defer cancel()

	appLog, err := c.WaitForApplicationLog(wctx, invokeResult.Tx, DefaultPollInterval)
	if err != nil {
		return result, fmt.Errorf("wait for %s execution: %w", method, err)
	}

	result.AppLog = appLog

	// Update VMState from actual execution
	if len(appLog.Executions) > 0 {
		exec := appLog.Executions[0]
		result.VMState = exec.VMState
		if exec.VMState != "HALT" {
			return result, &ExecutionError{Method: method, Exception: exec.Exception}
		}
	}

	return result, nil
}

func isUnknownTransaction(err error) bool {
	rpcErr, ok := err.(*RPCError)
	if !ok {
		return false
	}
	// Nodes report a not-yet-persisted transaction as "Unknown transaction", code -100.
	return rpcErr.Code == -100
}
