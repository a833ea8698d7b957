package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"coin_portal/internal/domain"
	"coin_portal/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-secret"

type accountMap map[string]*domain.Account

func (m accountMap) FindAccountByID(_ context.Context, id string) (*domain.Account, error) {
	if acc, ok := m[id]; ok {
		return acc, nil
	}
	return nil, domain.ErrAccountNotFound
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"account_id": c.GetString(AccountIDKey), "api_key": c.GetString(APIKeyKey)})
	})
	r.GET("/", handlers...)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, id string) string {
	t.Helper()
	tok, err := utils.GenerateJWT(id, secret)
	require.NoError(t, err)
	return tok
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := newRouter(JWTAuthMiddleware(secret))

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "bearer header", header: "Bearer " + token(t, "acc-1"), status: http.StatusOK},
		{name: "query fallback", query: "?access_token=" + token(t, "acc-1"), status: http.StatusOK},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "header wins over query", header: "Bearer nope", query: "?access_token=" + token(t, "acc-1"), status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not.a.jwt", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"account_id":"acc-1"`)
			}
		})
	}
}

func TestJWTAuthMiddlewareRejectsOtherSecret(t *testing.T) {
	r := newRouter(JWTAuthMiddleware(secret))
	tok, err := utils.GenerateJWT("acc-1", "another-secret")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	r := newRouter(APIKeyMiddleware())
	key, err := utils.NewAPIKey()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", key)
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), key)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "short")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestRoleAndStatusGuards(t *testing.T) {
	accounts := accountMap{
		"user":          {ID: "user", Role: domain.RoleUser, Status: domain.StatusActive},
		"suspended":     {ID: "suspended", Role: domain.RoleUser, Status: domain.StatusSuspended},
		"admin":         {ID: "admin", Role: domain.RoleAdmin, Status: domain.StatusActive},
		"retired-admin": {ID: "retired-admin", Role: domain.RoleAdmin, Status: domain.StatusSuspended},
	}
	active := newRouter(JWTAuthMiddleware(secret), ActiveOnlyMiddleware(accounts))
	admin := newRouter(JWTAuthMiddleware(secret), AdminOnlyMiddleware(accounts))

	tests := []struct {
		id         string
		activeCode int
		adminCode  int
	}{
		{id: "user", activeCode: http.StatusOK, adminCode: http.StatusForbidden},
		{id: "suspended", activeCode: http.StatusForbidden, adminCode: http.StatusForbidden},
		{id: "admin", activeCode: http.StatusOK, adminCode: http.StatusOK},
		{id: "retired-admin", activeCode: http.StatusForbidden, adminCode: http.StatusForbidden},
		{id: "deleted", activeCode: http.StatusUnauthorized, adminCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token(t, tt.id))
			assert.Equal(t, tt.activeCode, serve(active, req).Code)

			req = httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token(t, tt.id))
			assert.Equal(t, tt.adminCode, serve(admin, req).Code)
		})
	}
}

// staleCache serves an outdated copy from GetAccount while the database already has the new state
type staleCache struct {
	cached *domain.Account
	stored *domain.Account
}

func (s staleCache) GetAccount(context.Context, string) (*domain.Account, error) {
	return s.cached, nil
}

func (s staleCache) FindAccountByID(context.Context, string) (*domain.Account, error) {
	return s.stored, nil
}

func TestGuardsReadCommittedStatus(t *testing.T) {
	accounts := staleCache{
		cached: &domain.Account{ID: "acc", Role: domain.RoleAdmin, Status: domain.StatusActive},
		stored: &domain.Account{ID: "acc", Role: domain.RoleAdmin, Status: domain.StatusSuspended},
	}
	for name, guard := range map[string]gin.HandlerFunc{
		"active": ActiveOnlyMiddleware(accounts),
		"admin":  AdminOnlyMiddleware(accounts),
	} {
		t.Run(name, func(t *testing.T) {
			r := newRouter(JWTAuthMiddleware(secret), guard)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token(t, "acc"))
			assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
		})
	}
}
