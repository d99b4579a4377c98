package transaction

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rovshanmuradov/fito-presale/internal/wallet"
)

type codedError struct {
	code int
	data interface{}
}

func (e codedError) Error() string          { return fmt.Sprintf("rpc error %d", e.code) }
func (e codedError) ErrorCode() int         { return e.code }
func (e codedError) ErrorData() interface{} { return e.data }

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   FailureKind
		wantReason string
	}{
		{"wallet sentinel", fmt.Errorf("%w: denied", wallet.ErrUserRejected), KindUserRejected, ""},
		{"raw 4001", codedError{code: 4001}, KindUserRejected, ""},
		{"revert text with reason", errors.New("execution reverted: Min purchase 0.01"), KindReverted, "Min purchase 0.01"},
		{"bare revert text", errors.New("Execution Reverted"), KindReverted, "execution reverted"},
		{"undecodable revert data", codedError{code: 3, data: "0xdeadbeef"}, KindReverted, "execution reverted"},
		{"other", errors.New("insufficient funds for gas * price + value"), KindUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantReason, got.Reason)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestTxErrorMessages(t *testing.T) {
	assert.Equal(t, "Transaction rejected by user", (&TxError{Kind: KindUserRejected}).Message())
	assert.Equal(t, "Reverted: Sold out", (&TxError{Kind: KindReverted, Reason: "Sold out"}).Message())
	assert.Equal(t, "Reverted: execution reverted", (&TxError{Kind: KindReverted}).Message())
	assert.Equal(t, "Timeout: confirmation not observed within 2m0s",
		(&TxError{Kind: KindTimeout, Timeout: 2 * time.Minute}).Message())
	assert.Equal(t, "Transaction failed", (&TxError{}).Message())
	assert.Equal(t, "Transaction failed: boom", (&TxError{Cause: errors.New("boom")}).Message())
}

func TestTxErrorMatchesKindSentinel(t *testing.T) {
	assert.ErrorIs(t, &TxError{Kind: KindReverted}, ErrReverted)
	assert.ErrorIs(t, &TxError{Kind: KindTimeout}, ErrTimeout)
	assert.ErrorIs(t, &TxError{Kind: KindUserRejected}, ErrUserRejected)
	assert.ErrorIs(t, &TxError{}, ErrFailed)
}
