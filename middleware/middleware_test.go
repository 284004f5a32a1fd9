package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockAuthenticator struct{ mock.Mock }

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(token)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func perform(r http.Handler, method, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func businessCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var body utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{"", "", ErrMissingAuthHeader},
		{"Basic abc", "", ErrBadAuthHeader},
		{"Bearer", "", ErrBadAuthHeader},
		{"Bearer   ", "", ErrEmptyBearer},
		{"bearer abc.def", "abc.def", nil},
	}
	for _, tt := range tests {
		token, err := BearerToken(tt.header)
		assert.Equal(t, tt.token, token, tt.header)
		assert.ErrorIs(t, err, tt.err, tt.header)
	}
}

func TestAuthRequired(t *testing.T) {
	auth := &mockAuthenticator{}
	user := &models.User{ID: 9, Username: "alice", Role: models.RoleModerator}
	auth.On("Authenticate", "good").Return(user, nil)
	auth.On("Authenticate", "revoked").Return(nil, services.ErrTokenRevoked)
	auth.On("Authenticate", "banned").Return(nil, services.ErrBanned)
	auth.On("Authenticate", "bad").Return(nil, services.ErrInvalidToken)
	auth.On("Authenticate", "boom").Return(nil, errors.New("db down"))

	r := gin.New()
	r.GET("/me", AuthRequired(auth), func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role, "uid": c.GetUint(ContextUserIDKey)})
	})

	tests := []struct {
		header string
		status int
		code   int
	}{
		{"", http.StatusUnauthorized, 40101},
		{"Token x", http.StatusUnauthorized, 40102},
		{"Bearer  ", http.StatusUnauthorized, 40103},
		{"Bearer revoked", http.StatusUnauthorized, 40104},
		{"Bearer bad", http.StatusUnauthorized, 40105},
		{"Bearer banned", http.StatusUnauthorized, 40106},
		{"Bearer boom", http.StatusInternalServerError, 50000},
	}
	for _, tt := range tests {
		w := perform(r, http.MethodGet, "/me", tt.header)
		assert.Equal(t, tt.status, w.Code, tt.header)
		assert.Equal(t, tt.code, businessCode(t, w), tt.header)
	}

	w := perform(r, http.MethodGet, "/me", "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":9,"role":"moderator","uid":9}`, w.Body.String())
}

func TestRequirePolicy(t *testing.T) {
	withRole := func(role models.Role) gin.HandlerFunc {
		return func(c *gin.Context) {
			if role != "" {
				c.Set(ContextRoleKey, role)
			}
		}
	}
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	tests := []struct {
		role   models.Role
		status int
	}{
		{"", http.StatusUnauthorized},
		{models.RoleUser, http.StatusForbidden},
		{models.RoleModerator, http.StatusNoContent},
		{models.RoleAdmin, http.StatusNoContent},
	}
	for _, tt := range tests {
		r := gin.New()
		r.DELETE("/x", withRole(tt.role), RequirePolicy(services.AdminOrModerator), ok)
		w := perform(r, http.MethodDelete, "/x", "")
		assert.Equal(t, tt.status, w.Code, tt.role)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimitMiddleware(4), func(c *gin.Context) { c.Status(http.StatusOK) })

	// burst is half the per-minute budget
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/x", "").Code)
	}
	w := perform(r, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 42901, businessCode(t, w))

	other := gin.New()
	other.GET("/x", RateLimitMiddleware(4), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, perform(other, http.MethodGet, "/x", "").Code)
}

func TestRequestMetrics(t *testing.T) {
	r := gin.New()
	r.Use(RequestMetrics())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := utils.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "200")
	before := testutil.ToFloat64(counter)
	perform(r, http.MethodGet, "/items/1", "")
	perform(r, http.MethodGet, "/items/2", "")
	assert.Equal(t, before+2, testutil.ToFloat64(counter))

	unmatched := utils.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	perform(r, http.MethodGet, "/nope", "")
	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))
}
