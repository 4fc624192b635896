package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenGate adapts a TokenManager to the middleware interfaces
type tokenGate struct {
	tokens *utils.TokenManager
}

func (g tokenGate) VerifySessionToken(token string) (*utils.Claims, error) {
	claims, err := g.tokens.ParseSession(token)
	if err != nil {
		return nil, domain.Wrap(domain.KindUnauthorized, "invalid or expired token", err)
	}
	return claims, nil
}

func (g tokenGate) RequireAdmin(claims *utils.Claims) error {
	if !claims.Admin {
		return domain.ErrForbidden
	}
	return nil
}

func newTestRouter(gate tokenGate) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	whoami := func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			c.JSON(http.StatusOK, gin.H{"user_id": 0})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	}
	r.GET("/private", JWTAuthMiddleware(gate), whoami)
	r.GET("/public", OptionalJWTMiddleware(gate), whoami)
	r.GET("/admin", JWTAuthMiddleware(gate), AdminOnlyMiddleware(gate), whoami)
	return r
}

func doGet(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewares(t *testing.T) {
	gate := tokenGate{tokens: utils.NewTokenManager("session", "reset", time.Hour, time.Minute)}
	r := newTestRouter(gate)

	user, _, err := gate.tokens.IssueSession(7, "sam", false)
	require.NoError(t, err)
	admin, _, err := gate.tokens.IssueSession(1, "gandalf", true)
	require.NoError(t, err)
	reset, _, err := gate.tokens.IssueReset(7, "sam", "fp")
	require.NoError(t, err)

	cases := []struct {
		name, path, token string
		want              int
	}{
		{"private without header", "/private", "", http.StatusUnauthorized},
		{"private with session", "/private", user, http.StatusOK},
		{"private with reset token", "/private", reset, http.StatusForbidden},
		{"private with garbage", "/private", "not.a.token", http.StatusForbidden},
		{"public anonymous", "/public", "", http.StatusOK},
		{"public with session", "/public", user, http.StatusOK},
		{"public with bad token", "/public", "garbage", http.StatusForbidden},
		{"admin as user", "/admin", user, http.StatusForbidden},
		{"admin as admin", "/admin", admin, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doGet(r, tc.path, tc.token)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}

	w := doGet(r, "/private", user)
	assert.JSONEq(t, `{"user_id":7}`, w.Body.String())
}

func TestStatusFor(t *testing.T) {
	cases := map[domain.Kind]int{
		domain.KindInvalidInput:       http.StatusBadRequest,
		domain.KindInvalidCredentials: http.StatusBadRequest,
		domain.KindInvalidOperation:   http.StatusBadRequest,
		domain.KindInsufficientFunds:  http.StatusBadRequest,
		domain.KindUnauthorized:       http.StatusForbidden,
		domain.KindForbidden:          http.StatusForbidden,
		domain.KindNotFound:           http.StatusNotFound,
		domain.KindDuplicateIdentity:  http.StatusConflict,
		domain.KindConflict:           http.StatusConflict,
		domain.KindStorageUnavailable: http.StatusServiceUnavailable,
		domain.KindDeliveryFailed:     http.StatusBadGateway,
		domain.KindInternal:           http.StatusInternalServerError,
		"":                            http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusFor(kind), string(kind))
	}
}

func TestRespondErrorHidesUntypedCauses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/typed", func(c *gin.Context) { RespondError(c, domain.NewError(domain.KindConflict, "product already sold")) })
	r.GET("/untyped", func(c *gin.Context) { RespondError(c, errors.New("dial tcp: connection refused")) })
	r.GET("/internal", func(c *gin.Context) {
		RespondError(c, domain.Wrap(domain.KindInternal, "cannot issue token", errors.New("token secret is not configured")))
	})

	w := doGet(r, "/typed", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"product already sold","kind":"conflict"}`, w.Body.String())

	w = doGet(r, "/untyped", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error","kind":"internal"}`, w.Body.String())

	w = doGet(r, "/internal", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"cannot issue token","kind":"internal"}`, w.Body.String())
}
