package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/avelio/room-reservation/internal/model"
    "github.com/avelio/room-reservation/internal/utils"
)

func invoke(mw echo.MiddlewareFunc, prime func(c echo.Context)) *httptest.ResponseRecorder {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    if prime != nil {
        prime(c)
    }
    h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
    _ = h(c)
    return rec
}

func TestRequireRole(t *testing.T) {
    gate := RequireRole(model.RoleApprover, model.RoleAccountant)

    rec := invoke(gate, func(c echo.Context) { c.Set("role", model.RoleApprover) })
    assert.Equal(t, http.StatusOK, rec.Code)

    rec = invoke(gate, func(c echo.Context) { c.Set("role", model.RoleRequester) })
    assert.Equal(t, http.StatusForbidden, rec.Code)

    // No role in context at all.
    rec = invoke(gate, nil)
    assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestJWTAuthSetsIdentity(t *testing.T) {
    at, err := utils.NewAccessToken("test-secret", 7, model.RoleAccountant, 5)
    require.NoError(t, err)

    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    req.Header.Set("Authorization", "Bearer "+at.Token)
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)

    var gotRole interface{}
    var gotUser string
    h := JWTAuth("test-secret")(func(c echo.Context) error {
        gotRole = c.Get("role")
        gotUser = currentUserID(c)
        return c.NoContent(http.StatusOK)
    })
    require.NoError(t, h(c))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, model.RoleAccountant, gotRole)
    assert.Equal(t, "7", gotUser)
}

func TestJWTAuthRejectsBadTokens(t *testing.T) {
    e := echo.New()

    // Missing header.
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    rec := httptest.NewRecorder()
    h := JWTAuth("test-secret")(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
    _ = h(e.NewContext(req, rec))
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    // Token signed with a different secret.
    at, err := utils.NewAccessToken("other-secret", 7, model.RoleRequester, 5)
    require.NoError(t, err)
    req = httptest.NewRequest(http.MethodGet, "/", nil)
    req.Header.Set("Authorization", "Bearer "+at.Token)
    rec = httptest.NewRecorder()
    _ = h(e.NewContext(req, rec))
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
