// Package evmtoken implementa funds.TokenLedger sobre un contrato ERC-20.
// La custodia es la dirección de la hot wallet configurada: el registro solo
// puede mover fondos propios (transfer) o aprobados a su favor (transferFrom).
package evmtoken

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"pettrace/internal/ports/funds"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Subconjunto de ERC-20 que usa el registro.
const erc20ABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transferFrom","stateMutability":"nonpayable",
	 "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

var ErrReverted = errors.New("token transaction reverted")

// Backend es lo que el ledger necesita del nodo. *ethclient.Client lo cumple.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Options struct {
	Contract   common.Address
	PrivateKey string

	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

type Ledger struct {
	backend  Backend
	abi      abi.ABI
	contract common.Address
	key      *ecdsa.PrivateKey
	custody  common.Address
	chainID  *big.Int

	receiptTimeout time.Duration
	pollInterval   time.Duration

	// serializa nonce + envío
	sendMu sync.Mutex
}

var _ funds.TokenLedger = (*Ledger)(nil)

// Dial conecta al nodo RPC y arma el ledger.
func Dial(ctx context.Context, rpcURL string, opts Options) (*Ledger, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("error creating ethclient with the network url %s: %w", rpcURL, err)
	}
	l, err := New(ctx, client, opts)
	if err != nil {
		client.Close()
		return nil, err
	}
	return l, nil
}

func New(ctx context.Context, backend Backend, opts Options) (*Ledger, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	if opts.PrivateKey == "" {
		return nil, errors.New("token private key is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("error converting private key: %w", err)
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting chain ID: %w", err)
	}

	l := &Ledger{
		backend:        backend,
		abi:            parsed,
		contract:       opts.Contract,
		key:            key,
		custody:        crypto.PubkeyToAddress(key.PublicKey),
		chainID:        chainID,
		receiptTimeout: opts.ReceiptTimeout,
		pollInterval:   opts.PollInterval,
	}
	if l.receiptTimeout <= 0 {
		l.receiptTimeout = 2 * time.Minute
	}
	if l.pollInterval <= 0 {
		l.pollInterval = time.Second
	}
	return l, nil
}

// Custody es la dirección que firma; debe usarse como custodia del registro.
func (l *Ledger) Custody() common.Address { return l.custody }

func (l *Ledger) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return l.callUint(ctx, "balanceOf", account)
}

func (l *Ledger) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return l.callUint(ctx, "allowance", owner, spender)
}

// Transfer solo puede salir de la custodia.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if err := checkTransfer(to, amount); err != nil {
		return err
	}
	if from != l.custody {
		return fmt.Errorf("%w: transfer from %s", funds.ErrUnsupported, from.Hex())
	}

	bal, err := l.BalanceOf(ctx, from)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", funds.ErrInsufficientBalance, from.Hex(), bal, amount)
	}
	return l.send(ctx, "transfer", to, amount)
}

// TransferFrom solo con la custodia como spender. Se chequea allowance y saldo
// antes de enviar para no pagar gas en un revert previsible.
func (l *Ledger) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error {
	if err := checkTransfer(to, amount); err != nil {
		return err
	}
	if from == (common.Address{}) {
		return funds.ErrZeroAddress
	}
	if spender != l.custody {
		return fmt.Errorf("%w: spender %s", funds.ErrUnsupported, spender.Hex())
	}

	allowed, err := l.Allowance(ctx, from, spender)
	if err != nil {
		return err
	}
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s approved %s, needs %s", funds.ErrInsufficientAllowance, from.Hex(), allowed, amount)
	}
	bal, err := l.BalanceOf(ctx, from)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", funds.ErrInsufficientBalance, from.Hex(), bal, amount)
	}
	return l.send(ctx, "transferFrom", from, to, amount)
}

func (l *Ledger) callUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	data, err := l.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := l.backend.CallContract(ctx, ethereum.CallMsg{To: &l.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	res, err := l.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	v, ok := res[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected %T", method, res[0])
	}
	return v, nil
}

// send firma una tx legacy con la llave de custodia y espera el receipt.
// Cualquier falla posterior a SendTransaction se devuelve como *funds.PendingError.
func (l *Ledger) send(ctx context.Context, method string, args ...any) error {
	data, err := l.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	signed, err := l.signAndSend(ctx, data)
	if err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	// Ya enviada: cancelar el request no la retira, así que se espera el
	// receipt sin el cancel del llamador y con receiptTimeout como tope.
	receipt, err := l.waitReceipt(context.WithoutCancel(ctx), signed.Hash())
	if err != nil {
		return &funds.PendingError{Tx: signed.Hash(), Err: fmt.Errorf("wait %s: %w", method, err)}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s %s", ErrReverted, method, signed.Hash().Hex())
	}
	return nil
}

func (l *Ledger) signAndSend(ctx context.Context, data []byte) (*types.Transaction, error) {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	nonce, err := l.backend.PendingNonceAt(ctx, l.custody)
	if err != nil {
		return nil, err
	}
	gasPrice, err := l.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	gas, err := l.backend.EstimateGas(ctx, ethereum.CallMsg{From: l.custody, To: &l.contract, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &l.contract,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(l.chainID), l.key)
	if err != nil {
		return nil, err
	}
	if err := l.backend.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}

func (l *Ledger) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, l.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := l.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func checkTransfer(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return funds.ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return funds.ErrZeroAddress
	}
	return nil
}
