package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
    t.Helper()
    tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := tok.SignedString([]byte(secret))
    require.NoError(t, err)
    return signed
}

func runJWT(t *testing.T, authHeader string) (*httptest.ResponseRecorder, echo.Context, bool) {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    if authHeader != "" {
        req.Header.Set("Authorization", authHeader)
    }
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)

    reached := false
    handler := JWTAuth(testSecret)(func(c echo.Context) error {
        reached = true
        return c.NoContent(http.StatusOK)
    })
    require.NoError(t, handler(c))
    return rec, c, reached
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
    t.Parallel()
    token := signToken(t, testSecret, jwt.MapClaims{
        "sub":  "member-42",
        "role": "MEMBER",
        "exp":  time.Now().Add(time.Hour).Unix(),
    })
    rec, c, reached := runJWT(t, "Bearer "+token)

    assert.True(t, reached)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "member-42", c.Get("member_id"))
    assert.Equal(t, "MEMBER", c.Get("role"))
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
    t.Parallel()
    rec, _, reached := runJWT(t, "")
    assert.False(t, reached)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
    t.Parallel()
    token := signToken(t, "other-secret", jwt.MapClaims{"sub": "member-42"})
    rec, _, reached := runJWT(t, "Bearer "+token)
    assert.False(t, reached)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsExpiredToken(t *testing.T) {
    t.Parallel()
    token := signToken(t, testSecret, jwt.MapClaims{
        "sub": "member-42",
        "exp": time.Now().Add(-time.Hour).Unix(),
    })
    rec, _, reached := runJWT(t, "Bearer "+token)
    assert.False(t, reached)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsNonHMACToken(t *testing.T) {
    t.Parallel()
    // Tokens signed with "none" must never pass, whatever the payload.
    tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "member-42"})
    raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
    require.NoError(t, err)

    rec, _, reached := runJWT(t, "Bearer "+raw)
    assert.False(t, reached)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMemberIDFallsBackToGuest(t *testing.T) {
    t.Parallel()
    e := echo.New()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
    assert.Equal(t, "guest", MemberID(c))

    c.Set("member_id", "member-42")
    assert.Equal(t, "member-42", MemberID(c))
}
