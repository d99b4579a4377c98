package wallet

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type codeError struct {
	code int
	msg  string
}

func (e codeError) Error() string  { return e.msg }
func (e codeError) ErrorCode() int { return e.code }

// walletBackend is the state behind a fake EIP-1193 JSON-RPC wallet.
type walletBackend struct {
	mu       sync.Mutex
	accounts []common.Address
	approved bool
	reject   bool
	chainID  uint64
	known    map[uint64]bool
	added    []string
	sent     []sendTxArgs
	receipts map[common.Hash]*types.Receipt
}

type sendTxArgs struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value"`
	Data  hexutil.Bytes  `json:"data"`
}

type ethAPI struct{ b *walletBackend }

func (api *ethAPI) ChainId() hexutil.Uint64 {
	api.b.mu.Lock()
	defer api.b.mu.Unlock()
	return hexutil.Uint64(api.b.chainID)
}

func (api *ethAPI) Accounts() []common.Address {
	api.b.mu.Lock()
	defer api.b.mu.Unlock()
	if !api.b.approved {
		return []common.Address{}
	}
	return append([]common.Address{}, api.b.accounts...)
}

func (api *ethAPI) RequestAccounts() ([]common.Address, error) {
	api.b.mu.Lock()
	defer api.b.mu.Unlock()
	if api.b.reject {
		return nil, codeError{code: CodeUserRejected, msg: "User rejected the request."}
	}
	api.b.approved = true
	return append([]common.Address{}, api.b.accounts...), nil
}

func (api *ethAPI) SendTransaction(args sendTxArgs) (common.Hash, error) {
	api.b.mu.Lock()
	defer api.b.mu.Unlock()
	if api.b.reject {
		return common.Hash{}, codeError{code: CodeUserRejected, msg: "User denied transaction signature."}
	}
	api.b.sent = append(api.b.sent, args)
	return common.BigToHash(big.NewInt(int64(len(api.b.sent)))), nil
}

func (api *ethAPI) GetTransactionReceipt(hash common.Hash) *types.Receipt {
	api.b.mu.Lock()
	defer api.b.mu.Unlock()
	return api.b.receipts[hash]
}

type walletAPI struct{ b *walletBackend }

type switchArgs struct {
	ChainID hexutil.Uint64 `json:"chainId"`
}

func (api *walletAPI) SwitchEthereumChain(args switchArgs) error {
	api.b.mu.Lock()
	defer api.b.mu.Unlock()
	if !api.b.known[uint64(args.ChainID)] {
		return codeError{code: CodeUnrecognizedChain, msg: "Unrecognized chain ID."}
	}
	api.b.chainID = uint64(args.ChainID)
	return nil
}

type addArgs struct {
	ChainID   hexutil.Uint64 `json:"chainId"`
	ChainName string         `json:"chainName"`
	RPCURLs   []string       `json:"rpcUrls"`
}

func (api *walletAPI) AddEthereumChain(args addArgs) error {
	api.b.mu.Lock()
	defer api.b.mu.Unlock()
	api.b.known[uint64(args.ChainID)] = true
	api.b.added = append(api.b.added, args.ChainName)
	return nil
}

func startWallet(t *testing.T, b *walletBackend) string {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", &ethAPI{b: b}))
	require.NoError(t, srv.RegisterName("wallet", &walletAPI{b: b}))
	httpSrv := httptest.NewServer(srv)
	t.Cleanup(func() {
		httpSrv.Close()
		srv.Stop()
	})
	return httpSrv.URL
}

func newBackend(chainID uint64) *walletBackend {
	return &walletBackend{
		accounts: []common.Address{common.HexToAddress("0x00000000000000000000000000000000000a11ce")},
		chainID:  chainID,
		known:    map[uint64]bool{chainID: true},
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func dialTestWallet(t *testing.T, url string, interval time.Duration) *RPCProvider {
	t.Helper()
	p, err := DialRPCProvider(context.Background(), &RPCProviderConfig{
		URL:           url,
		WatchInterval: interval,
		Logger:        zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestDialUnreachableWalletIsMissingProvider(t *testing.T) {
	_, err := DialRPCProvider(context.Background(), &RPCProviderConfig{
		URL:    "http://127.0.0.1:1",
		Logger: zaptest.NewLogger(t),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderMissing)
}

func TestRPCProviderAccountsFlow(t *testing.T) {
	b := newBackend(7777)
	p := dialTestWallet(t, startWallet(t, b), time.Second)
	ctx := context.Background()

	accounts, err := p.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	accounts, err = p.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.accounts, accounts)

	id, err := p.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7777), id)
}

func TestRPCProviderMapsRejection(t *testing.T) {
	b := newBackend(7777)
	b.reject = true
	p := dialTestWallet(t, startWallet(t, b), time.Second)

	_, err := p.RequestAccounts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserRejected)

	var rpcErr rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeUserRejected, rpcErr.ErrorCode())
}

func TestRPCProviderSwitchUnknownChain(t *testing.T) {
	b := newBackend(1)
	p := dialTestWallet(t, startWallet(t, b), time.Second)
	ctx := context.Background()

	err := p.SwitchChain(ctx, 7777)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnrecognizedChain)

	require.NoError(t, p.AddChain(ctx, ChainParams{
		ChainID:   7777,
		ChainName: "Fitochain",
		RPCURLs:   []string{"https://rpc.fitochain.test"},
	}))
	require.NoError(t, p.SwitchChain(ctx, 7777))

	id, err := p.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7777), id)
	assert.Equal(t, []string{"Fitochain"}, b.added)
}

func TestRPCProviderSendTransaction(t *testing.T) {
	b := newBackend(7777)
	p := dialTestWallet(t, startWallet(t, b), time.Second)

	req := TxRequest{
		From:  b.accounts[0],
		To:    common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Value: big.NewInt(1_000_000),
		Data:  []byte{0xde, 0xad},
	}
	hash, err := p.SendTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, common.BigToHash(big.NewInt(1)), hash)

	require.Len(t, b.sent, 1)
	assert.Equal(t, req.To, b.sent[0].To)
	assert.Equal(t, req.Value, b.sent[0].Value.ToInt())
	assert.Equal(t, hexutil.Bytes(req.Data), b.sent[0].Data)
}

func TestRPCProviderReceiptNotFound(t *testing.T) {
	b := newBackend(7777)
	p := dialTestWallet(t, startWallet(t, b), time.Second)

	hash := common.HexToHash("0x01")
	_, err := p.TransactionReceipt(context.Background(), hash)
	assert.ErrorIs(t, err, ethereum.NotFound)

	b.mu.Lock()
	b.receipts[hash] = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		Logs:        []*types.Log{},
		BlockNumber: big.NewInt(12),
	}
	b.mu.Unlock()

	receipt, err := p.TransactionReceipt(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
}

func TestRPCProviderWatchEmitsAccountsBeforeChain(t *testing.T) {
	b := newBackend(7777)
	b.approved = true
	p := dialTestWallet(t, startWallet(t, b), 10*time.Millisecond)

	sink := make(chan Notification, 4)
	sub, err := p.Subscribe(context.Background(), sink)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	time.Sleep(30 * time.Millisecond)
	other := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	b.mu.Lock()
	b.accounts = []common.Address{other}
	b.chainID = 56
	b.mu.Unlock()

	var got []Notification
	require.Eventually(t, func() bool {
		select {
		case n := <-sink:
			got = append(got, n)
		default:
		}
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, AccountsChanged, got[0].Kind)
	assert.Equal(t, []common.Address{other}, got[0].Accounts)
	assert.Equal(t, ChainChanged, got[1].Kind)
	assert.Equal(t, uint64(56), got[1].ChainID)
}

func TestMapProviderErrorPassesThroughOtherCodes(t *testing.T) {
	err := mapProviderError(codeError{code: -32000, msg: "execution reverted"})
	assert.False(t, errors.Is(err, ErrUserRejected))
	assert.False(t, errors.Is(err, ErrUnrecognizedChain))
	assert.EqualError(t, err, "execution reverted")

	plain := errors.New("eof")
	assert.Same(t, plain, mapProviderError(plain))
}
