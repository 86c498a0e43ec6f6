package middleware

// identity.go defines helper functions shared across middleware files.
// Currently it provides a user identifier extraction function used by the
// rate limiter to build per-user bucket keys.  The global limiter runs
// before JWTAuth, so on unauthenticated requests (and all routes outside
// protected groups) the identifier falls back to "anon" and the key
// degrades to IP/route scoping.

import (
    "fmt"

    "github.com/labstack/echo/v4"
)

// currentUserID extracts a user identifier from the Echo context.  JWTAuth
// stores the token subject under "user_id"; the claim type depends on how
// the token was minted, so anything non-nil is formatted as a string.
func currentUserID(c echo.Context) string {
    if v := c.Get("user_id"); v != nil {
        if s, ok := v.(string); ok {
            if s == "" {
                return "anon"
            }
            return s
        }
        return fmt.Sprint(v)
    }
    return "anon"
}
