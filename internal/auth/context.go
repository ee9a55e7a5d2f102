package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxRole
	ctxTokenID
)

var ErrNoIdentity = errors.New("identity not in context")

func WithIdentity(ctx context.Context, userID, role, tokenID string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxRole, role)
	ctx = context.WithValue(ctx, ctxTokenID, tokenID)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxUserID)
}

func Role(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxRole)
}

// TokenID is the jti of the access token that authenticated the request.
func TokenID(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxTokenID)
}

func stringValue(ctx context.Context, k ctxKey) (string, error) {
	if s, ok := ctx.Value(k).(string); ok && s != "" {
		return s, nil
	}
	return "", ErrNoIdentity
}
