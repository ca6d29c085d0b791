package auth

import "context"

type claimsKey struct{}

// ContextWithClaims returns ctx carrying verified token claims.
func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the verified claims attached by the router's
// bearer guard, or nil when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}
