package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hermod-app/hermod/internal/config"
	"github.com/hermod-app/hermod/internal/logging"
	"github.com/hermod-app/hermod/internal/metrics"
	"github.com/hermod-app/hermod/internal/model"
	"github.com/hermod-app/hermod/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router   *gin.Engine
	store    *memStore
	mailer   *captureMailer
	accounts *service.AccountService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.Discard()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := newMemStore()
	mailer := &captureMailer{}

	authCfg := config.AuthConfig{
		JWTSecret:       "test-secret-test-secret-test-secret",
		ResetRequestTTL: "1h",
		ResetURL:        "https://forms.example.com/reset",
	}
	hashes := service.NewHashPool(service.NewPasswordHasher(), 4, m)
	tokens, err := service.NewTokenService(authCfg, m)
	require.NoError(t, err)
	accounts, err := service.NewAccountService(store, hashes, mailer, authCfg, logger)
	require.NoError(t, err)

	auth := NewAuthHandler(service.NewCredentialValidator(store, hashes, m, logger), tokens, accounts, logger)
	router := NewRouter(RouterConfig{
		Auth:           auth,
		Authenticator:  service.NewRequestAuthorizer(tokens, store, logger),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AllowedOrigins: []string{"*"},
		Logger:         logger,
	})
	return &testServer{router: router, store: store, mailer: mailer, accounts: accounts}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *testServer) login(user, password string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+password)))
	return s.do(req)
}

func (s *testServer) whoami(authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return s.do(req)
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegisterLoginWhoAmI(t *testing.T) {
	srv := newTestServer(t)

	w := srv.register(t, url.Values{"username": {"alice"}, "password": {"s3cret"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "New user stored.", w.Body.String())

	w = srv.login("alice", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	token := w.Body.String()
	require.NotEmpty(t, token)
	assert.Equal(t, 2, strings.Count(token, "."))

	for _, authorization := range []string{token, "Bearer " + token} {
		w = srv.whoami(authorization)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice", w.Body.String())
	}
}

func TestLoginFailuresChallengeWithBasic(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusOK, srv.register(t, url.Values{"username": {"alice"}, "password": {"s3cret"}}).Code)

	malformed := httptest.NewRequest(http.MethodGet, "/login", nil)
	malformed.Header.Set("Authorization", "Basic not-valid-base64")
	noColon := httptest.NewRequest(http.MethodGet, "/login", nil)
	noColon.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("justusername")))

	responses := map[string]*httptest.ResponseRecorder{
		"wrong password": srv.login("alice", "wrong"),
		"unknown user":   srv.login("mallory", "s3cret"),
		"missing header": srv.do(httptest.NewRequest(http.MethodGet, "/login", nil)),
		"malformed":      srv.do(malformed),
		"no colon":       srv.do(noColon),
	}
	for name, w := range responses {
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
		assert.Equal(t, `Basic realm="publish"`, w.Header().Get("WWW-Authenticate"), name)
		assert.Empty(t, w.Body.String(), name)
	}
}

func TestProtectedRouteRejections(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusOK, srv.register(t, url.Values{"username": {"bob"}, "password": {"pw"}}).Code)
	w := srv.login("bob", "pw")
	require.Equal(t, http.StatusOK, w.Code)
	token := w.Body.String()

	assert.Equal(t, http.StatusUnauthorized, srv.whoami("").Code)
	assert.Equal(t, http.StatusUnauthorized, srv.whoami("Bearer nonsense").Code)
	assert.Equal(t, http.StatusUnauthorized, srv.whoami(token+"x").Code)

	srv.store.deleteAccount("bob")
	w = srv.whoami(token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Header().Get("WWW-Authenticate"))
}

func TestLogoutIsClientSide(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(httptest.NewRequest(http.MethodGet, "/logout", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Logouts with JWT's are performed client-side", w.Body.String())
}

func TestRegisterErrors(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, srv.register(t, url.Values{"username": {"alice"}}).Code)
	assert.Equal(t, http.StatusBadRequest, srv.register(t, url.Values{"password": {"pw"}}).Code)
	assert.Equal(t, http.StatusBadRequest, srv.register(t, url.Values{"username": {"a:b"}, "password": {"pw"}}).Code)

	require.Equal(t, http.StatusOK, srv.register(t, url.Values{"username": {"alice"}, "password": {"pw"}}).Code)
	w := srv.register(t, url.Values{"username": {"Alice"}, "password": {"other"}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "server error", body.Error)
}

func TestChangePassword(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusOK, srv.register(t, url.Values{"username": {"alice"}, "password": {"s3cret"}}).Code)
	token := srv.login("alice", "s3cret").Body.String()

	change := func(current, next string) *httptest.ResponseRecorder {
		form := url.Values{"current_password": {current}, "new_password": {next}}
		req := httptest.NewRequest(http.MethodPost, "/password/change", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", token)
		return srv.do(req)
	}

	assert.Equal(t, http.StatusForbidden, change("wrong", "n3w").Code)
	assert.Equal(t, http.StatusBadRequest, change("s3cret", "").Code)
	assert.Equal(t, http.StatusOK, change("s3cret", "n3w").Code)

	assert.Equal(t, http.StatusUnauthorized, srv.login("alice", "s3cret").Code)
	assert.Equal(t, http.StatusOK, srv.login("alice", "n3w").Code)
}

func TestForgotAndResetPassword(t *testing.T) {
	srv := newTestServer(t)
	form := url.Values{"username": {"alice"}, "password": {"s3cret"}, "email": {"alice@example.com"}}
	require.Equal(t, http.StatusOK, srv.register(t, form).Code)

	known := srv.do(postJSON("/password/forgot", `{"username":"alice"}`))
	unknown := srv.do(postJSON("/password/forgot", `{"username":"nobody"}`))
	byQuery := srv.do(httptest.NewRequest(http.MethodPost, "/password/forgot?username=nobody", nil))
	srv.accounts.Wait()

	for _, w := range []*httptest.ResponseRecorder{known, unknown, byQuery} {
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, known.Body.String(), w.Body.String())
	}

	bodies := srv.mailer.bodies()
	require.Len(t, bodies, 1)
	var resetID string
	for _, line := range strings.Split(bodies[0], "\n") {
		if u, err := url.Parse(line); err == nil && u.Query().Get("id") != "" {
			resetID = u.Query().Get("id")
		}
	}
	require.NotEmpty(t, resetID)

	bad := srv.do(postJSON("/password/reset", `{"reset_id":"00000000-0000-0000-0000-000000000000","new_password":"n3w"}`))
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	ok := srv.do(postJSON("/password/reset", `{"reset_id":"`+resetID+`","new_password":"n3w"}`))
	require.Equal(t, http.StatusOK, ok.Code)

	reused := srv.do(postJSON("/password/reset", `{"reset_id":"`+resetID+`","new_password":"again"}`))
	assert.Equal(t, http.StatusBadRequest, reused.Code)
	assert.Equal(t, bad.Body.String(), reused.Body.String())

	assert.Equal(t, http.StatusOK, srv.login("alice", "n3w").Code)
}

func TestForgotPasswordRequiresUsername(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(postJSON("/password/forgot", `{"username":""}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
