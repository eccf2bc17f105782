package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/courtside/models"
)

type contextKey string

const identityContextKey contextKey = "identity"

const (
	jwtClaimUserID = "user_id"
	jwtClaimName   = "name"
)

var ErrNoIdentity = errors.New("identity not found in context")

func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

func GetIdentityFromContext(ctx context.Context) (models.Identity, error) {
	id, ok := ctx.Value(identityContextKey).(models.Identity)
	if !ok {
		return models.Identity{}, ErrNoIdentity
	}
	return id, nil
}

// participantIDFromClaims accepts numeric or string user ids.
func participantIDFromClaims(claims jwt.MapClaims) (string, error) {
	raw, ok := claims[jwtClaimUserID]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("empty '%s' claim", jwtClaimUserID)
		}
		return v, nil
	case float64:
		if v != float64(int64(v)) || v <= 0 {
			return "", fmt.Errorf("invalid '%s' claim: %v", jwtClaimUserID, v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return "", fmt.Errorf("invalid type for '%s' claim: expected number or string, got %T", jwtClaimUserID, raw)
	}
}
