package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/phoenix-eye/phoenix-eye-api/models"
)

// Claims is the JWT payload issued at login: the user id plus the role the
// admin gate checks. Handlers read it back out of the request context.
type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type claimsContextKey struct{}

// Auth holds the signing secret for the bearer-token middleware
type Auth struct {
	Secret string
}

// TokenTTL is how long issued tokens stay valid.
const TokenTTL = 2 * time.Hour

// NewToken mints a signed bearer token for the given user
func (a Auth) NewToken(user models.User) (string, error) {
	if a.Secret == "" {
		return "", errors.New("jwt secret is not set")
	}
	claims := Claims{
		UserID: user.ID.Hex(),
		Role:   user.Role,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.Secret))
}

// Middleware adds bearer token authentication around accessing the routes
func (a Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		claims, err := a.parseRequest(r)
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL,
				"error", err)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		zap.S().Debugf("user %s authenticated", claims.Email)
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// AdminOnly authenticates like Middleware and additionally requires the
// admin role
func (a Auth) AdminOnly(next http.Handler) http.Handler {
	return a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := UserFromContext(r.Context())
		if !ok || claims.Role != models.RoleAdmin {
			zap.S().Warnw("forbidden, admin role required",
				"url", r.URL)
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error": "admin role required"}`))
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (a Auth) parseRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errors.New("missing bearer token")
	}
	return a.Parse(strings.TrimSpace(parts[1]))
}

// Parse validates a token string and returns its claims
func (a Auth) Parse(tokenStr string) (*Claims, error) {
	if a.Secret == "" {
		return nil, errors.New("jwt secret is not set")
	}
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func withClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// UserFromContext returns the authenticated caller's claims, if any
func UserFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok
}
