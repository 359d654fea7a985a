package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	UserIDKey    = "user_id"
	UserRolesKey = "user_roles"
)

// Claims carries the subject and role list issued by the identity gateway.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// Middleware validates HMAC-signed bearer tokens and stores the caller's
// identity on the echo context. In development mode every request is treated
// as an authenticated billing admin so the API can be exercised without a
// token issuer.
func Middleware(secret string, devMode bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if devMode {
				c.Set(UserIDKey, "dev-user")
				c.Set(UserRolesKey, []string{"admin", "billing"})
				return next(c)
			}

			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(401, "missing authorization header")
			}
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return echo.NewHTTPError(401, "authorization header must be a bearer token")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(401, "invalid or expired token")
			}

			c.Set(UserIDKey, claims.Subject)
			c.Set(UserRolesKey, claims.Roles)
			return next(c)
		}
	}
}

// RequireRole allows the request through only when the caller holds at least
// one of the given roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			callerRoles, _ := c.Get(UserRolesKey).([]string)
			for _, r := range callerRoles {
				if allowed[r] {
					return next(c)
				}
			}
			return echo.NewHTTPError(403, "insufficient role")
		}
	}
}

// UserID returns the authenticated caller's subject, or "" if the request
// was not authenticated.
func UserID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}
