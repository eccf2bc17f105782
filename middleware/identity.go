package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/Dosada05/courtside/models"
)

const (
	guestPrefix     = "guest-"
	defaultGuestTag = "Guest"
	maxNameLength   = 40
)

var ErrInvalidToken = errors.New("invalid or expired token")

type IdentityResolver struct {
	secret      []byte
	allowGuests bool
	logger      *slog.Logger
}

func NewIdentityResolver(secret string, allowGuests bool, logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{secret: []byte(secret), allowGuests: allowGuests, logger: logger}
}

// Resolve reads a bearer token from the Authorization header or, for browser
// websockets that cannot set headers, from the token query parameter.
func (ir *IdentityResolver) Resolve(r *http.Request) (models.Identity, error) {
	raw := bearerToken(r)
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		if !ir.allowGuests {
			return models.Identity{}, ErrInvalidToken
		}
		return guestIdentity(r.URL.Query().Get("name")), nil
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ir.secret, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	pid, err := participantIDFromClaims(claims)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	name, _ := claims[jwtClaimName].(string)
	if name == "" {
		name = "Player " + pid
	}
	return models.Identity{ParticipantID: pid, DisplayName: truncate(name), Guest: false}, nil
}

// Identify rejects requests whose identity cannot be resolved.
func (ir *IdentityResolver) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := ir.Resolve(r)
		if err != nil {
			ir.logger.Debug("identity rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func guestIdentity(name string) models.Identity {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultGuestTag
	}
	return models.Identity{
		ParticipantID: guestPrefix + uuid.NewString(),
		DisplayName:   truncate(name),
		Guest:         true,
	}
}

func truncate(name string) string {
	r := []rune(name)
	if len(r) > maxNameLength {
		return string(r[:maxNameLength])
	}
	return name
}
