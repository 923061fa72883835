package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lodestar-erp/lodestar-erp/internal/auth"
	"github.com/lodestar-erp/lodestar-erp/internal/shared"
	_ "github.com/lodestar-erp/lodestar-erp/testing"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

// commitWriter flushes the session before the first header write, matching the
// production middleware: Set-Cookie must land before the handler responds.
type commitWriter struct {
	http.ResponseWriter
	commit        func()
	headerWritten bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		w.commit()
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

func newAuthRouter(t *testing.T, repo auth.Repository) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager, csrfManager)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			wrapped := &commitWriter{ResponseWriter: w, commit: func() {
				require.NoError(t, sessionManager.Commit(ctx, w, req, sess))
			}}
			next.ServeHTTP(wrapped, req.WithContext(ctx))
		})
	})
	handler.MountRoutes(r)
	return r, sessionManager
}

func testUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &auth.User{
		ID:           uuid.New(),
		CompanyID:    uuid.New(),
		Email:        "user@test.local",
		Name:         "Test User",
		PasswordHash: string(hashed),
		IsActive:     true,
	}
}

func TestLoginSuccessSetsSessionAndCSRF(t *testing.T) {
	user := testUser(t, "correctpass")
	router, sessionManager := newAuthRouter(t, &stubRepo{user: user})

	body := `{"email":"user@test.local","password":"correctpass"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)

	var resp struct {
		UserID    string `json:"user_id"`
		CompanyID string `json:"company_id"`
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &resp))
	require.Equal(t, user.ID.String(), resp.UserID)
	require.Equal(t, user.CompanyID.String(), resp.CompanyID)
	require.NotEmpty(t, resp.CSRFToken)

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, sessionManager.CookieName(), cookies[0].Name)
	require.NotEmpty(t, cookies[0].Value)
}

func TestLoginInvalidCredentials(t *testing.T) {
	user := testUser(t, "correctpass")
	router, _ := newAuthRouter(t, &stubRepo{user: user})

	body := `{"email":"user@test.local","password":"wrongpass1"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginInactiveUserRejected(t *testing.T) {
	user := testUser(t, "correctpass")
	user.IsActive = false
	router, _ := newAuthRouter(t, &stubRepo{user: user})

	body := `{"email":"user@test.local","password":"correctpass"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeRequiresSignIn(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeAfterLogin(t *testing.T) {
	user := testUser(t, "correctpass")
	router, _ := newAuthRouter(t, &stubRepo{user: user})

	loginReq := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"user@test.local","password":"correctpass"}`))
	loginRes := httptest.NewRecorder()
	router.ServeHTTP(loginRes, loginReq)
	require.Equal(t, http.StatusOK, loginRes.Code)

	cookies := loginRes.Result().Cookies()
	require.NotEmpty(t, cookies)

	meReq := httptest.NewRequest(http.MethodGet, "/me", nil)
	meReq.AddCookie(cookies[0])
	meRes := httptest.NewRecorder()
	router.ServeHTTP(meRes, meReq)

	require.Equal(t, http.StatusOK, meRes.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(meRes.Body.Bytes(), &resp))
	require.Equal(t, user.CompanyID.String(), resp["company_id"])
}
