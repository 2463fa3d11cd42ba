package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// UserIDFromContext returns the authenticated user id. The auth middleware
// stores it as "user_id"; the raw token is the fallback.
func UserIDFromContext(c echo.Context) (string, error) {
	if id, ok := c.Get("user_id").(string); ok && id != "" {
		return id, nil
	}
	tok, ok := c.Get("user").(*jwt.Token)
	if !ok || tok == nil {
		return "", errors.New("no jwt token in context")
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errors.New("sub missing in claims")
	}
	return sub, nil
}
