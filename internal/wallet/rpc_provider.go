// internal/wallet/rpc_provider.go
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// RPCProviderConfig points at a wallet exposing the EIP-1193 method set
// over JSON-RPC, such as a desktop wallet's local endpoint.
type RPCProviderConfig struct {
	URL           string
	WatchInterval time.Duration
	Logger        *zap.Logger
}

// RPCProvider forwards wallet requests over JSON-RPC. Plain HTTP carries
// no push notifications, so account and chain changes are detected by
// polling and fanned out through an event.Feed.
type RPCProvider struct {
	client   *rpc.Client
	interval time.Duration
	logger   *zap.Logger
	feed     event.Feed

	watchOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// DialRPCProvider connects to the wallet endpoint and probes it. An
// unreachable endpoint is reported as ErrProviderMissing.
func DialRPCProvider(ctx context.Context, config *RPCProviderConfig) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, config.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderMissing, err)
	}

	var id hexutil.Uint64
	if err := client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrProviderMissing, err)
	}

	interval := config.WatchInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	watchCtx, cancel := context.WithCancel(context.Background())
	return &RPCProvider{
		client:   client,
		interval: interval,
		logger:   config.Logger.Named("rpc_wallet"),
		ctx:      watchCtx,
		cancel:   cancel,
	}, nil
}

// RPCLocator dials the wallet endpoint on every Locate call.
func RPCLocator(config *RPCProviderConfig) Locator {
	return LocatorFunc(func(ctx context.Context) (Provider, error) {
		return DialRPCProvider(ctx, config)
	})
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	err := p.call(ctx, &accounts, "eth_requestAccounts")
	return accounts, err
}

func (p *RPCProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	err := p.call(ctx, &accounts, "eth_accounts")
	return accounts, err
}

func (p *RPCProvider) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := p.call(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (p *RPCProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	param := map[string]string{"chainId": hexutil.EncodeUint64(chainID)}
	return p.call(ctx, nil, "wallet_switchEthereumChain", param)
}

type addChainParam struct {
	ChainID           string   `json:"chainId"`
	ChainName         string   `json:"chainName"`
	NativeCurrency    Currency `json:"nativeCurrency"`
	RPCURLs           []string `json:"rpcUrls"`
	BlockExplorerURLs []string `json:"blockExplorerUrls,omitempty"`
}

func (p *RPCProvider) AddChain(ctx context.Context, params ChainParams) error {
	return p.call(ctx, nil, "wallet_addEthereumChain", addChainParam{
		ChainID:           hexutil.EncodeUint64(params.ChainID),
		ChainName:         params.ChainName,
		NativeCurrency:    params.NativeCurrency,
		RPCURLs:           params.RPCURLs,
		BlockExplorerURLs: params.BlockExplorerURLs,
	})
}

type sendTxParam struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value,omitempty"`
	Data  hexutil.Bytes  `json:"data,omitempty"`
}

func (p *RPCProvider) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	param := sendTxParam{From: req.From, To: req.To, Data: req.Data}
	if req.Value != nil && req.Value.Sign() > 0 {
		param.Value = (*hexutil.Big)(new(big.Int).Set(req.Value))
	}
	var hash common.Hash
	err := p.call(ctx, &hash, "eth_sendTransaction", param)
	return hash, err
}

func (p *RPCProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	if err := p.call(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// Subscribe starts the change watcher on first use.
func (p *RPCProvider) Subscribe(_ context.Context, sink chan<- Notification) (event.Subscription, error) {
	sub := p.feed.Subscribe(sink)
	p.watchOnce.Do(func() {
		p.wg.Add(1)
		go p.watch()
	})
	return sub, nil
}

// Close stops the watcher and the RPC client.
func (p *RPCProvider) Close() error {
	p.cancel()
	p.wg.Wait()
	p.client.Close()
	return nil
}

func (p *RPCProvider) watch() {
	defer p.wg.Done()

	lastAccounts, _ := p.Accounts(p.ctx)
	lastChain, _ := p.ChainID(p.ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}

		accounts, err := p.Accounts(p.ctx)
		if err != nil {
			p.logger.Debug("Account poll failed", zap.Error(err))
			continue
		}
		chainID, err := p.ChainID(p.ctx)
		if err != nil {
			p.logger.Debug("Chain poll failed", zap.Error(err))
			continue
		}

		if !slices.Equal(accounts, lastAccounts) {
			lastAccounts = accounts
			p.feed.Send(Notification{Kind: AccountsChanged, Accounts: accounts})
		}
		if chainID != lastChain {
			lastChain = chainID
			p.feed.Send(Notification{Kind: ChainChanged, ChainID: chainID})
		}
	}
}

func (p *RPCProvider) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if err := p.client.CallContext(ctx, result, method, args...); err != nil {
		return mapProviderError(err)
	}
	return nil
}

// mapProviderError tags EIP-1193 error codes with wallet sentinels while
// keeping the original error in the chain for revert data.
func mapProviderError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case CodeUserRejected:
			return fmt.Errorf("%w: %w", ErrUserRejected, err)
		case CodeUnrecognizedChain:
			return fmt.Errorf("%w: %w", ErrUnrecognizedChain, err)
		}
	}
	return err
}
