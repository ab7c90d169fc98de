package httpapi

import (
	"crypto/rsa"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"agentrouter/internal/domain"
)

// bearerContextKey is where RequireBearer stashes the raw token string
// for handlers to forward verbatim into outbound tool calls. Only the
// raw string is propagated; decoded claims are used for verification and
// then discarded.
const bearerContextKey = "bearer_token"

// RequireBearer verifies the Authorization header against publicKeyPEM
// (RS256) and, on success, stores the raw token string on the echo
// context for handlers to read with bearerFromContext. Verification
// failures surface as 401 through the same error envelope every other
// handler uses, rather than echo's default plaintext 401.
func RequireBearer(publicKeyPEM string) (echo.MiddlewareFunc, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, err
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractBearer(c.Request().Header.Get("Authorization"))
			if raw == "" {
				return writeError(c, domain.ErrUnauthorized)
			}
			if _, err := parseAndVerify(raw, key); err != nil {
				return writeError(c, domain.ErrUnauthorized)
			}
			c.Set(bearerContextKey, raw)
			return next(c)
		}
	}, nil
}

// StaticBearer installs a fixed token on every request, used for the
// DisableAuth test surface where no Authorization header is required.
func StaticBearer(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(bearerContextKey, token)
			return next(c)
		}
	}
}

func bearerFromContext(c echo.Context) string {
	token, _ := c.Get(bearerContextKey).(string)
	return token
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func parseAndVerify(raw string, key *rsa.PublicKey) (*jwt.Token, error) {
	return jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return key, nil
	})
}

func writeError(c echo.Context, err error) error {
	return c.JSON(statusFor(err), newErrorBody(err))
}
