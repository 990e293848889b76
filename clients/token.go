package clients

import (
	"context"
	"net/http"
)

type tokenKey struct{}

// WithToken stores the caller's bearer token so outbound calls to the
// membership and product services run with the caller's identity.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey{}).(string); ok {
		return v
	}
	return ""
}

func setAuthHeader(ctx context.Context, req *http.Request) {
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
