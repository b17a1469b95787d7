// Package walletsig verifica tokens firmados por una wallet (EIP-191).
//
// Formato del token: <hex mensaje>.<hex firma>, con mensaje "pettrace-auth:<unix segundos>".
// La dirección recuperada de la firma es el llamador.
package walletsig

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pettrace/internal/ports/auth"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const MessagePrefix = "pettrace-auth:"

var (
	ErrTokenEmpty       = errors.New("token is empty")
	ErrMalformedToken   = errors.New("malformed wallet token")
	ErrInvalidSignature = errors.New("invalid wallet signature")
	ErrExpired          = errors.New("wallet token outside allowed window")
)

type Verifier struct {
	ttl time.Duration
	now func() time.Time
}

func NewVerifier(ttl time.Duration) *Verifier {
	return &Verifier{ttl: ttl, now: time.Now}
}

var _ auth.AuthVerifier = (*Verifier)(nil)

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	rawMsg, rawSig, ok := strings.Cut(token, ".")
	if !ok {
		return auth.Claims{}, ErrMalformedToken
	}
	msg, err := decodeHex(rawMsg)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: message: %v", ErrMalformedToken, err)
	}
	sig, err := decodeHex(rawSig)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: signature: %v", ErrMalformedToken, err)
	}

	issued, err := parseMessage(string(msg))
	if err != nil {
		return auth.Claims{}, err
	}
	// ventana simétrica para tolerar relojes adelantados
	if d := v.now().Sub(time.Unix(issued, 0)); d > v.ttl || d < -v.ttl {
		return auth.Claims{}, ErrExpired
	}

	if len(sig) != crypto.SignatureLength {
		return auth.Claims{}, ErrInvalidSignature
	}
	sig = append([]byte(nil), sig...)
	// Las wallets firman con V en {27, 28}.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return auth.Claims{Address: crypto.PubkeyToAddress(*pub), IssuedAt: issued}, nil
}

// Token arma un token válido para la llave dada. Lo usan clientes y tests.
func Token(key *ecdsa.PrivateKey, at time.Time) (string, error) {
	msg := []byte(MessagePrefix + strconv.FormatInt(at.Unix(), 10))
	sig, err := crypto.Sign(accounts.TextHash(msg), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(msg) + "." + hexutil.Encode(sig), nil
}

func parseMessage(msg string) (int64, error) {
	rest, ok := strings.CutPrefix(msg, MessagePrefix)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected message", ErrMalformedToken)
	}
	ts, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: timestamp", ErrMalformedToken)
	}
	return ts, nil
}

func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
