package auth

import "context"

// AuthVerifier valida el bearer token de un request y devuelve la wallet que
// lo firmó. La identidad del registro es solo esa dirección: un error o una
// dirección cero equivalen a "sin llamador".
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// VerifierFunc adapta una función a AuthVerifier.
type VerifierFunc func(ctx context.Context, token string) (Claims, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (Claims, error) {
	return f(ctx, token)
}
