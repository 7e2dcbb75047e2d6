package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/music-spaces/internal/config"
	"github.com/music-spaces/pkg/database"
	"github.com/music-spaces/pkg/jwt"
	"github.com/music-spaces/pkg/redis"
)

const secret = "gateway-secret"

type fixture struct {
	router   *gin.Engine
	issuer   *jwt.Issuer
	sessions *redis.SessionStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}, zap.NewNop(), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	issuer := jwt.NewIssuer("jwt-secret", time.Hour)
	sessions := redis.NewSessionStore(client)
	mw := NewMiddleware(issuer, sessions, zap.NewNop())
	guards := mw.Guards()

	r := gin.New()
	api := r.Group("/api/v1")
	NewHandler(db, issuer, sessions, secret, false, zap.NewNop()).RegisterRoutes(api, guards)
	api.GET("/forbidden-probe", guards.Forbidden, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey)})
	})

	return &fixture{router: r, issuer: issuer, sessions: sessions}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T, subject string) (string, string) {
	t.Helper()
	body, _ := json.Marshal(IdentityRequest{Provider: "google", Subject: subject, Email: "a@example.com", Name: "A"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/identity", bytes.NewReader(body))
	req.Header.Set(SecretHeader, secret)
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == CookieName {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	return resp.Token, resp.User.ID
}

func TestIdentityExchange(t *testing.T) {
	f := newFixture(t)
	token, userID := f.login(t, "sub-1")

	_, again := f.login(t, "sub-1")
	assert.Equal(t, userID, again, "same identity maps to the same user")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := f.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID)
	assert.NotContains(t, w.Body.String(), "sub-1")
}

func TestIdentityRejectsUnknownGateway(t *testing.T) {
	f := newFixture(t)
	body := bytes.NewBufferString(`{"provider":"google","subject":"x"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/identity", body)
	req.Header.Set(SecretHeader, "wrong")
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)
}

func TestIdentityValidatesBody(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/identity", bytes.NewBufferString(`{"provider":"google"}`))
	req.Header.Set(SecretHeader, secret)
	w := f.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Subject")
}

func TestMiddlewareStatuses(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/user", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/forbidden-probe", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/forbidden-probe", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)
}

func TestMiddlewareAcceptsCookie(t *testing.T) {
	f := newFixture(t)
	token, userID := f.login(t, "sub-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/forbidden-probe", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	w := f.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID)
}

func TestMiddlewareRequiresSession(t *testing.T) {
	f := newFixture(t)

	// signed correctly but never registered as a session
	token, _, err := f.issuer.GenerateToken("ghost")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t)
	token, _ := f.login(t, "sub-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}
