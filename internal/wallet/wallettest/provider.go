// Package wallettest provides a scriptable wallet.Provider for tests.
package wallettest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/rovshanmuradov/fito-presale/internal/wallet"
)

// Provider is an in-memory wallet. Exported error fields make the matching
// request fail; hooks run before results are returned.
type Provider struct {
	mu       sync.Mutex
	accounts []common.Address
	approved bool
	chainID  uint64
	known    map[uint64]bool
	receipts map[common.Hash]*types.Receipt
	sent     []wallet.TxRequest
	nonce    uint64
	switches []uint64
	added    []wallet.ChainParams
	feed     event.Feed

	RequestErr error
	SwitchErr  error
	AddErr     error
	SendErr    error

	// AutoMine stores a receipt with AutoMineStatus for every sent tx.
	AutoMine       bool
	AutoMineStatus uint64

	// OnSend runs after a transaction is accepted, before its hash is
	// returned.
	OnSend func(req wallet.TxRequest, hash common.Hash)
}

func NewProvider(account common.Address, chainID uint64) *Provider {
	return &Provider{
		accounts:       []common.Address{account},
		chainID:        chainID,
		known:          map[uint64]bool{chainID: true},
		receipts:       make(map[common.Hash]*types.Receipt),
		AutoMineStatus: types.ReceiptStatusSuccessful,
	}
}

// Approve marks the accounts as already authorized, so Accounts returns
// them without a prompt.
func (p *Provider) Approve() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.approved = true
}

// Know registers chainID as switchable.
func (p *Provider) Know(chainID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.known[chainID] = true
}

func (p *Provider) RequestAccounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RequestErr != nil {
		return nil, p.RequestErr
	}
	p.approved = true
	return append([]common.Address(nil), p.accounts...), nil
}

func (p *Provider) Accounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.approved {
		return nil, nil
	}
	return append([]common.Address(nil), p.accounts...), nil
}

func (p *Provider) ChainID(context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID, nil
}

func (p *Provider) SwitchChain(_ context.Context, chainID uint64) error {
	p.mu.Lock()
	p.switches = append(p.switches, chainID)
	if p.SwitchErr != nil {
		err := p.SwitchErr
		p.mu.Unlock()
		return err
	}
	if !p.known[chainID] {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d", wallet.ErrUnrecognizedChain, chainID)
	}
	p.chainID = chainID
	p.mu.Unlock()

	p.feed.Send(wallet.Notification{Kind: wallet.ChainChanged, ChainID: chainID})
	return nil
}

func (p *Provider) AddChain(_ context.Context, params wallet.ChainParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, params)
	if p.AddErr != nil {
		return p.AddErr
	}
	p.known[params.ChainID] = true
	return nil
}

func (p *Provider) Subscribe(_ context.Context, sink chan<- wallet.Notification) (event.Subscription, error) {
	return p.feed.Subscribe(sink), nil
}

func (p *Provider) SendTransaction(_ context.Context, req wallet.TxRequest) (common.Hash, error) {
	p.mu.Lock()
	if p.SendErr != nil {
		err := p.SendErr
		p.mu.Unlock()
		return common.Hash{}, err
	}
	p.nonce++
	hash := common.BigToHash(new(big.Int).SetUint64(0xf1700000 + p.nonce))
	p.sent = append(p.sent, req)
	if p.AutoMine {
		p.receipts[hash] = &types.Receipt{
			Status:      p.AutoMineStatus,
			TxHash:      hash,
			BlockNumber: new(big.Int).SetUint64(100 + p.nonce),
		}
	}
	hook := p.OnSend
	p.mu.Unlock()

	if hook != nil {
		hook(req, hash)
	}
	return hash, nil
}

// Mine stores a receipt for hash.
func (p *Provider) Mine(hash common.Hash, status uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receipts[hash] = &types.Receipt{Status: status, TxHash: hash, BlockNumber: big.NewInt(1)}
}

func (p *Provider) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

// EmitAccounts replaces the accounts and notifies subscribers.
func (p *Provider) EmitAccounts(accounts ...common.Address) {
	p.mu.Lock()
	p.accounts = accounts
	p.mu.Unlock()
	p.feed.Send(wallet.Notification{Kind: wallet.AccountsChanged, Accounts: accounts})
}

// EmitChain changes the chain and notifies subscribers.
func (p *Provider) EmitChain(chainID uint64) {
	p.mu.Lock()
	p.chainID = chainID
	p.mu.Unlock()
	p.feed.Send(wallet.Notification{Kind: wallet.ChainChanged, ChainID: chainID})
}

// Sent returns the transactions submitted so far.
func (p *Provider) Sent() []wallet.TxRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]wallet.TxRequest(nil), p.sent...)
}

func (p *Provider) Switches() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint64(nil), p.switches...)
}

func (p *Provider) Added() []wallet.ChainParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]wallet.ChainParams(nil), p.added...)
}

// Locator returns a locator that always finds p.
func (p *Provider) Locator() wallet.Locator {
	return wallet.LocatorFunc(func(context.Context) (wallet.Provider, error) {
		return p, nil
	})
}
