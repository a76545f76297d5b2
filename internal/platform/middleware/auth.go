package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"selfid/pkg/domain"
	"selfid/pkg/requestcontext"
)

// addressClaim is the JWT claim carrying the caller's account address.
const addressClaim = "addr"

// PrincipalValidator parses bearer tokens into an authenticated principal
// address. Every mutating operation takes the caller as an explicit argument;
// this is the single place where transport-level auth becomes that argument.
type PrincipalValidator struct {
	signingKey []byte
}

// NewPrincipalValidator constructs a validator for HS256-signed tokens.
func NewPrincipalValidator(signingKey string) *PrincipalValidator {
	return &PrincipalValidator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a token, returning the principal address.
func (v *PrincipalValidator) ValidateToken(tokenString string) (domain.Address, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	raw, _ := claims[addressClaim].(string)
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		return "", fmt.Errorf("invalid %s claim: %w", addressClaim, err)
	}
	if addr.IsZero() {
		return "", fmt.Errorf("token carries the null address")
	}
	return addr, nil
}

// IssueToken mints a token for the given address. Used by dev tooling and
// tests; production deployments are expected to bring their own issuer.
func (v *PrincipalValidator) IssueToken(addr domain.Address) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		addressClaim: addr.String(),
	})
	return token.SignedString(v.signingKey)
}

// RequirePrincipal rejects requests without a valid bearer token and injects
// the caller address into the request context.
func RequirePrincipal(validator *PrincipalValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			addr, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, addr)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":"unauthorized","error_description":%q}`, description)
}
