// internal/transaction/classify.go
package transaction

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/rovshanmuradov/fito-presale/internal/wallet"
)

const revertMarker = "execution reverted"

// Classify maps a signer or node error to a ticket failure.
func Classify(err error) *TxError {
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr
	}
	if errors.Is(err, wallet.ErrUserRejected) {
		return &TxError{Kind: KindUserRejected, Cause: err}
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == wallet.CodeUserRejected {
		return &TxError{Kind: KindUserRejected, Cause: err}
	}
	if reason, ok := RevertReason(err); ok {
		return &TxError{Kind: KindReverted, Reason: reason, Cause: err}
	}
	return &TxError{Kind: KindUnknown, Cause: err}
}

// RevertReason extracts a revert reason from err. The second result is
// false when err does not describe a revert.
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(hexData); decodeErr == nil && len(data) > 0 {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
				return revertMarker, true
			}
		}
	}

	msg := err.Error()
	i := strings.Index(strings.ToLower(msg), revertMarker)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimSpace(msg[i+len(revertMarker):])
	rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
	if rest == "" {
		return revertMarker, true
	}
	return rest, true
}
