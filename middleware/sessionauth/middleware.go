package sessionauth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/memberhub-io/memberhub/services/session"
	"github.com/memberhub-io/memberhub/services/user"
)

const (
	sessionContextKey = "auth.session"
	userContextKey    = "auth.user"
	tokenContextKey   = "auth.raw_token"
)

// Middleware resolves the bearer token into a request-scoped session and
// user. There is no ambient current-user state; everything downstream
// reads from the echo context.
func Middleware(sessions *session.Service, users *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawToken := extractBearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if rawToken == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			sess, err := sessions.Authenticate(rawToken)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			u, err := users.FindByID(sess.UserID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			c.Set(sessionContextKey, sess)
			c.Set(userContextKey, u)
			c.Set(tokenContextKey, rawToken)

			return next(c)
		}
	}
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func CurrentSession(c echo.Context) *session.Session {
	if sess, ok := c.Get(sessionContextKey).(*session.Session); ok {
		return sess
	}
	return nil
}

func CurrentUser(c echo.Context) *user.User {
	if u, ok := c.Get(userContextKey).(*user.User); ok {
		return u
	}
	return nil
}

func CurrentToken(c echo.Context) string {
	if token, ok := c.Get(tokenContextKey).(string); ok {
		return token
	}
	return ""
}
