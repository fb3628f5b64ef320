package gateway

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/studysignal/studyroomd/pkg/token"
)

const identityKey = "gateway.identity"

// requireToken rejects requests without a valid bearer token and
// stores the verified identity on the request context.
func (g *Gateway) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		raw := strings.TrimPrefix(auth, "Bearer ")
		if auth == "" || raw == auth {
			return c.JSON(http.StatusUnauthorized, errResponse{Error: "missing bearer token"})
		}

		identity, err := g.tokens.Verify(raw)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errResponse{Error: "invalid token"})
		}

		c.Set(identityKey, identity)
		return next(c)
	}
}

func identityFrom(c echo.Context) token.Identity {
	identity, _ := c.Get(identityKey).(token.Identity)
	return identity
}
