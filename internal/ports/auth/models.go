package auth

import "github.com/ethereum/go-ethereum/common"

// Claims representa la identidad verificada del llamador.
// El registro solo compara direcciones, nunca autentica por sí mismo.
type Claims struct {
	Address common.Address
	// IssuedAt es el timestamp firmado (solo modo wallet).
	IssuedAt int64
}
