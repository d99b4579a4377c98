// internal/wallet/key_provider.go
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"
)

// KeyProviderConfig configures a local signer. Networks maps chain ids to
// RPC endpoints the signer may switch between.
type KeyProviderConfig struct {
	PrivateKey     string
	Networks       map[uint64]string
	InitialChainID uint64
	Logger         *zap.Logger
}

// KeyProvider signs with a local private key and broadcasts through
// ethclient. It behaves like a wallet that has already authorized the
// storefront.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	logger  *zap.Logger
	feed    event.Feed

	mu       sync.RWMutex
	networks map[uint64]string
	client   *ethclient.Client
	chainID  uint64
}

func NewKeyProvider(ctx context.Context, config *KeyProviderConfig) (*KeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(config.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	networks := make(map[uint64]string, len(config.Networks))
	for id, url := range config.Networks {
		networks[id] = url
	}
	url, ok := networks[config.InitialChainID]
	if !ok {
		return nil, fmt.Errorf("no rpc endpoint for chain %d", config.InitialChainID)
	}

	client, err := dialChain(ctx, url, config.InitialChainID)
	if err != nil {
		return nil, err
	}

	p := &KeyProvider{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		logger:   config.Logger.Named("key_wallet"),
		networks: networks,
		client:   client,
		chainID:  config.InitialChainID,
	}
	p.logger.Info("🔑 Local signer ready", zap.String("address", p.address.Hex()))
	return p, nil
}

// KeyLocator builds a KeyProvider on every Locate call.
func KeyLocator(config *KeyProviderConfig) Locator {
	return LocatorFunc(func(ctx context.Context) (Provider, error) {
		return NewKeyProvider(ctx, config)
	})
}

func dialChain(ctx context.Context, url string, want uint64) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	got, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("read chain id from %s: %w", url, err)
	}
	if got.Uint64() != want {
		client.Close()
		return nil, fmt.Errorf("endpoint %s serves chain %s, expected %d", url, got, want)
	}
	return client, nil
}

func (p *KeyProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

func (p *KeyProvider) Accounts(context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

func (p *KeyProvider) ChainID(context.Context) (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chainID, nil
}

func (p *KeyProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	p.mu.RLock()
	url, ok := p.networks[chainID]
	current := p.chainID
	p.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnrecognizedChain, chainID)
	}
	if current == chainID {
		return nil
	}

	client, err := dialChain(ctx, url, chainID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	old := p.client
	p.client = client
	p.chainID = chainID
	p.mu.Unlock()
	old.Close()

	p.logger.Info("🔀 Switched chain", zap.Uint64("chain_id", chainID))
	p.feed.Send(Notification{Kind: ChainChanged, ChainID: chainID})
	return nil
}

// AddChain verifies the first RPC URL serves the chain and remembers it.
// It does not switch.
func (p *KeyProvider) AddChain(ctx context.Context, params ChainParams) error {
	if len(params.RPCURLs) == 0 {
		return errors.New("no rpc urls supplied")
	}
	client, err := dialChain(ctx, params.RPCURLs[0], params.ChainID)
	if err != nil {
		return err
	}
	client.Close()

	p.mu.Lock()
	p.networks[params.ChainID] = params.RPCURLs[0]
	p.mu.Unlock()
	return nil
}

func (p *KeyProvider) Subscribe(_ context.Context, sink chan<- Notification) (event.Subscription, error) {
	return p.feed.Subscribe(sink), nil
}

func (p *KeyProvider) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	p.mu.RLock()
	client := p.client
	chainID := new(big.Int).SetUint64(p.chainID)
	p.mu.RUnlock()

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := client.PendingNonceAt(ctx, p.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get nonce: %w", err)
	}
	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{From: p.address, To: &req.To, Value: value, Data: req.Data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas / 5

	tx, err := p.buildTx(ctx, client, chainID, nonce, gas, req.To, value, req.Data)
	if err != nil {
		return common.Hash{}, err
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), p.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast transaction: %w", err)
	}

	p.logger.Info("📤 Transaction sent", zap.String("hash", signed.Hash().Hex()))
	return signed.Hash(), nil
}

// buildTx prefers an EIP-1559 transaction and falls back to a legacy one
// on chains without a base fee.
func (p *KeyProvider) buildTx(ctx context.Context, client *ethclient.Client, chainID *big.Int,
	nonce, gas uint64, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {

	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get head: %w", err)
	}

	if head.BaseFee == nil {
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce: nonce, GasPrice: gasPrice, Gas: gas, To: &to, Value: value, Data: data,
		}), nil
	}

	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest tip: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	}), nil
}

func (p *KeyProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	return client.TransactionReceipt(ctx, hash)
}

// Address returns the signing account.
func (p *KeyProvider) Address() common.Address {
	return p.address
}

func (p *KeyProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client.Close()
	return nil
}
