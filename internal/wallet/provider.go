// internal/wallet/provider.go
package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// Provider is the external signer. Implementations follow EIP-1193
// semantics: RequestAccounts may prompt the human, Accounts never does.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, params ChainParams) error

	// Subscribe delivers account and chain notifications to sink in the
	// order the provider observed them.
	Subscribe(ctx context.Context, sink chan<- Notification) (event.Subscription, error)

	// SendTransaction signs and broadcasts req, returning its hash.
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)

	// TransactionReceipt returns ethereum.NotFound while the transaction
	// is not yet included.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type NotificationKind int

const (
	AccountsChanged NotificationKind = iota
	ChainChanged
)

func (k NotificationKind) String() string {
	if k == AccountsChanged {
		return "accountsChanged"
	}
	return "chainChanged"
}

type Notification struct {
	Kind     NotificationKind
	Accounts []common.Address
	ChainID  uint64
}

type Currency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// ChainParams is the wallet_addEthereumChain parameter set.
type ChainParams struct {
	ChainID           uint64
	ChainName         string
	NativeCurrency    Currency
	RPCURLs           []string
	BlockExplorerURLs []string
}

type TxRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Locator finds a provider. It returns an error wrapping
// ErrProviderMissing when none is available yet.
type Locator interface {
	Locate(ctx context.Context) (Provider, error)
}

type LocatorFunc func(ctx context.Context) (Provider, error)

func (f LocatorFunc) Locate(ctx context.Context) (Provider, error) {
	return f(ctx)
}

// NoProvider is the locator for read-only mode.
var NoProvider = LocatorFunc(func(context.Context) (Provider, error) {
	return nil, ErrProviderMissing
})
