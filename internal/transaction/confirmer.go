// internal/transaction/confirmer.go
package transaction

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ReceiptSource returns ethereum.NotFound until a transaction is included.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Confirmer waits for receipts with a constant poll interval, bounded by
// Timeout. A reverted receipt is replayed through Replayer, when set, to
// recover the revert reason.
type Confirmer struct {
	Interval time.Duration
	Timeout  time.Duration
	Replayer ethereum.ContractCaller
	Logger   *zap.Logger
}

// Wait blocks until hash is mined, the bound is exceeded or ctx ends. The
// returned error is always a *TxError.
func (c *Confirmer) Wait(ctx context.Context, src ReceiptSource, call ethereum.CallMsg, hash common.Hash) (*types.Receipt, error) {
	interval, timeout := c.Interval, c.Timeout
	if interval <= 0 {
		interval = time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempts := 0
	operation := func() (*types.Receipt, error) {
		attempts++
		receipt, err := src.TransactionReceipt(waitCtx, hash)
		if err != nil {
			if !errors.Is(err, ethereum.NotFound) && c.Logger != nil {
				c.Logger.Debug("Receipt poll failed", zap.String("hash", hash.Hex()), zap.Error(err))
			}
			return nil, err
		}
		return receipt, nil
	}

	receipt, err := backoff.Retry(waitCtx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(timeout),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TxError{Kind: KindUnknown, Cause: ErrStopped}
		}
		return nil, &TxError{Kind: KindTimeout, Timeout: timeout, Cause: err}
	}

	if c.Logger != nil {
		c.Logger.Debug("Receipt observed",
			zap.String("hash", hash.Hex()),
			zap.Uint64("status", receipt.Status),
			zap.Int("polls", attempts))
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, &TxError{Kind: KindReverted, Reason: c.replay(ctx, call, receipt.BlockNumber)}
	}
	return receipt, nil
}

// replay re-executes call at the receipt block and decodes why it failed.
func (c *Confirmer) replay(ctx context.Context, call ethereum.CallMsg, block *big.Int) string {
	if c.Replayer == nil {
		return revertMarker
	}
	_, err := c.Replayer.CallContract(ctx, call, block)
	if reason, ok := RevertReason(err); ok {
		return reason
	}
	return revertMarker
}
