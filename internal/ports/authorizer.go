package ports

import "context"

// Authorizer decide si una credencial puede ejecutar operaciones de admin
// (toggle, resolve, reset). Devuelve un error que envuelve
// domain.ErrUnauthorized cuando la credencial no vale.
type Authorizer interface {
	Authorize(ctx context.Context, credential string) error
}

// AuthorizerFunc adapta una función a Authorizer.
type AuthorizerFunc func(ctx context.Context, credential string) error

func (f AuthorizerFunc) Authorize(ctx context.Context, credential string) error {
	return f(ctx, credential)
}

// AllowAll acepta cualquier credencial. Solo para tests y modo dry-run.
var AllowAll Authorizer = AuthorizerFunc(func(context.Context, string) error { return nil })
