package middleware

import "github.com/labstack/echo/v4"

// Context keys written by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// UserID returns the authenticated user's id, if any.
func UserID(c echo.Context) (string, bool) {
	id, ok := c.Get(ctxUserID).(string)
	return id, ok && id != ""
}

// Role returns the authenticated user's role or "".
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// identity is the rate-limit bucket owner: the user id or "anon".
func identity(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return id
	}
	return "anon"
}
