package evmtoken

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"pettrace/internal/ports/funds"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// fakeChain simula un nodo con un único contrato ERC-20.
type fakeChain struct {
	mu sync.Mutex

	abi     abi.ABI
	chainID *big.Int

	balances   map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
	nonces     map[common.Address]uint64
	receipts   map[common.Hash]*types.Receipt
	sent       []common.Address

	pendingPolls int
	revert       bool
}

func newFakeChain(t *testing.T) *fakeChain {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	return &fakeChain{
		abi:        parsed,
		chainID:    big.NewInt(31337),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[[2]common.Address]*big.Int),
		nonces:     make(map[common.Address]uint64),
		receipts:   make(map[common.Hash]*types.Receipt),
	}
}

func (f *fakeChain) ChainID(ctx context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeChain) balance(a common.Address) *big.Int {
	if v, ok := f.balances[a]; ok {
		return v
	}
	return new(big.Int)
}

func (f *fakeChain) allowance(owner, spender common.Address) *big.Int {
	if v, ok := f.allowances[[2]common.Address{owner, spender}]; ok {
		return v
	}
	return new(big.Int)
}

func (f *fakeChain) decode(data []byte) (*abi.Method, []any, error) {
	m, err := f.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return m, args, nil
}

func (f *fakeChain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, args, err := f.decode(call.Data)
	if err != nil {
		return nil, err
	}
	switch m.Name {
	case "balanceOf":
		return m.Outputs.Pack(f.balance(args[0].(common.Address)))
	case "allowance":
		return m.Outputs.Pack(f.allowance(args[0].(common.Address), args[1].(common.Address)))
	}
	return nil, fmt.Errorf("unexpected call %s", m.Name)
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 60_000, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sender, err := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
	if err != nil {
		return err
	}
	if tx.Nonce() != f.nonces[sender] {
		return fmt.Errorf("nonce too low: got %d, want %d", tx.Nonce(), f.nonces[sender])
	}
	f.nonces[sender]++
	f.sent = append(f.sent, sender)

	status := types.ReceiptStatusSuccessful
	if f.revert {
		status = types.ReceiptStatusFailed
	} else if err := f.apply(sender, tx.Data()); err != nil {
		status = types.ReceiptStatusFailed
	}
	f.receipts[tx.Hash()] = &types.Receipt{Status: status, TxHash: tx.Hash()}
	return nil
}

func (f *fakeChain) apply(sender common.Address, data []byte) error {
	m, args, err := f.decode(data)
	if err != nil {
		return err
	}

	var from, to common.Address
	var amount *big.Int
	switch m.Name {
	case "transfer":
		from, to, amount = sender, args[0].(common.Address), args[1].(*big.Int)
	case "transferFrom":
		from, to, amount = args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
		allowed := f.allowance(from, sender)
		if allowed.Cmp(amount) < 0 {
			return errors.New("allowance")
		}
		f.allowances[[2]common.Address{from, sender}] = new(big.Int).Sub(allowed, amount)
	default:
		return fmt.Errorf("unexpected tx %s", m.Name)
	}

	if f.balance(from).Cmp(amount) < 0 {
		return errors.New("balance")
	}
	f.balances[from] = new(big.Int).Sub(f.balance(from), amount)
	f.balances[to] = new(big.Int).Add(f.balance(to), amount)
	return nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pendingPolls > 0 {
		f.pendingPolls--
		return nil, ethereum.NotFound
	}
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

var (
	holder = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	finder = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	token  = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func newTestLedger(t *testing.T, chain *fakeChain, receiptTimeout time.Duration) *Ledger {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	l, err := New(context.Background(), chain, Options{
		Contract:       token,
		PrivateKey:     "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
		ReceiptTimeout: receiptTimeout,
		PollInterval:   time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if l.Custody() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("expected custody to be the key address")
	}
	return l
}

func TestLedger_TransferFromThenPayout(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(t)
	l := newTestLedger(t, chain, time.Second)
	custody := l.Custody()

	chain.balances[holder] = big.NewInt(100)
	chain.allowances[[2]common.Address{holder, custody}] = big.NewInt(60)

	if err := l.TransferFrom(ctx, custody, holder, custody, big.NewInt(50)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if err := l.Transfer(ctx, custody, finder, big.NewInt(50)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	for addr, want := range map[common.Address]int64{holder: 50, custody: 0, finder: 50} {
		got, err := l.BalanceOf(ctx, addr)
		if err != nil {
			t.Fatalf("balanceOf: %v", err)
		}
		if got.Int64() != want {
			t.Fatalf("expected balance %d for %s, got %s", want, addr.Hex(), got)
		}
	}
	left, _ := l.Allowance(ctx, holder, custody)
	if left.Int64() != 10 {
		t.Fatalf("expected allowance 10, got %s", left)
	}

	if len(chain.sent) != 2 || chain.sent[0] != custody || chain.nonces[custody] != 2 {
		t.Fatalf("expected two txs signed by custody, got %v", chain.sent)
	}
}

func TestLedger_PreflightRejects(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(t)
	l := newTestLedger(t, chain, time.Second)
	custody := l.Custody()

	chain.balances[holder] = big.NewInt(100)
	chain.allowances[[2]common.Address{holder, custody}] = big.NewInt(10)

	if err := l.TransferFrom(ctx, custody, holder, custody, big.NewInt(50)); !errors.Is(err, funds.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}

	chain.allowances[[2]common.Address{holder, custody}] = big.NewInt(500)
	if err := l.TransferFrom(ctx, custody, holder, custody, big.NewInt(200)); !errors.Is(err, funds.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if err := l.TransferFrom(ctx, finder, holder, custody, big.NewInt(1)); !errors.Is(err, funds.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for foreign spender, got %v", err)
	}
	if err := l.Transfer(ctx, holder, finder, big.NewInt(1)); !errors.Is(err, funds.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for foreign sender, got %v", err)
	}
	if err := l.Transfer(ctx, custody, finder, big.NewInt(0)); !errors.Is(err, funds.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := l.Transfer(ctx, custody, common.Address{}, big.NewInt(1)); !errors.Is(err, funds.ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}

	if len(chain.sent) != 0 {
		t.Fatalf("expected no tx sent, got %d", len(chain.sent))
	}
}

func TestLedger_WaitsForReceipt(t *testing.T) {
	chain := newFakeChain(t)
	l := newTestLedger(t, chain, time.Second)
	chain.balances[l.Custody()] = big.NewInt(5)
	chain.pendingPolls = 3

	if err := l.Transfer(context.Background(), l.Custody(), finder, big.NewInt(5)); err != nil {
		t.Fatalf("expected transfer after polling, got %v", err)
	}
	if chain.pendingPolls != 0 {
		t.Fatalf("expected receipt to be polled, %d polls left", chain.pendingPolls)
	}
}

func TestLedger_RevertedAndTimeout(t *testing.T) {
	chain := newFakeChain(t)
	l := newTestLedger(t, chain, 20*time.Millisecond)
	chain.balances[l.Custody()] = big.NewInt(5)

	chain.revert = true
	err := l.Transfer(context.Background(), l.Custody(), finder, big.NewInt(1))
	if !errors.Is(err, ErrReverted) {
		t.Fatalf("expected ErrReverted, got %v", err)
	}
	if funds.IsPending(err) {
		t.Fatalf("expected a reverted tx to be final, got pending")
	}

	chain.revert = false
	chain.pendingPolls = 1 << 30
	err = l.Transfer(context.Background(), l.Custody(), finder, big.NewInt(1))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	var pending *funds.PendingError
	if !errors.As(err, &pending) || !funds.IsPending(err) {
		t.Fatalf("expected a pending error after send, got %v", err)
	}
	if pending.Tx == (common.Hash{}) {
		t.Fatalf("expected tx hash on pending error")
	}
}

func TestLedger_CancelledCallerStillWaitsForReceipt(t *testing.T) {
	chain := newFakeChain(t)
	l := newTestLedger(t, chain, time.Second)
	chain.balances[l.Custody()] = big.NewInt(5)
	chain.pendingPolls = 3

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Transfer(ctx, l.Custody(), finder, big.NewInt(5)); err != nil {
		t.Fatalf("expected receipt despite cancelled caller, got %v", err)
	}
	if got := chain.balance(finder); got.Int64() != 5 {
		t.Fatalf("expected finder balance 5, got %s", got)
	}
}

func TestNew_RejectsBadKey(t *testing.T) {
	chain := newFakeChain(t)
	if _, err := New(context.Background(), chain, Options{Contract: token}); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if _, err := New(context.Background(), chain, Options{Contract: token, PrivateKey: "zz"}); err == nil {
		t.Fatalf("expected error for invalid key")
	}
}
