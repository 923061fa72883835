package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-erp/lodestar-erp/internal/shared"
)

type memoryGuard struct {
	claimed map[string]bool
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{claimed: make(map[string]bool)}
}

func (g *memoryGuard) CheckAndInsert(ctx context.Context, key, module string) error {
	if g.claimed[key] {
		return shared.ErrIdempotencyConflict
	}
	g.claimed[key] = true
	return nil
}

func (g *memoryGuard) Delete(ctx context.Context, key string) error {
	delete(g.claimed, key)
	return nil
}

func newLedgerRouter(t *testing.T, guard IdempotencyGuard) chi.Router {
	t.Helper()
	repo := newMemoryRepo()
	service := NewService(repo, nil, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, service, guard)

	sess := &shared.Session{ID: "test-session"}
	sess.SetUser(uuid.NewString(), uuid.NewString())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	handler.MountRoutes(r)
	return r
}

func postTransaction(t *testing.T, router http.Handler, body, idemKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestCreateReleasesIdempotencyKeyOnFailure(t *testing.T) {
	guard := newMemoryGuard()
	router := newLedgerRouter(t, guard)

	productID := uuid.New()
	warehouseID := uuid.New()

	// Inbound without a warehouse passes payload validation but fails in the
	// service, after the idempotency key was claimed.
	badBody := fmt.Sprintf(`{"transaction_type":"inbound","items":[{"product_id":%q,"quantity":"5"}]}`, productID)
	res := postTransaction(t, router, badBody, "retry-1")
	require.Equal(t, http.StatusBadRequest, res.Code)

	// The corrected retry with the same key must go through.
	goodBody := fmt.Sprintf(`{"transaction_type":"inbound","warehouse_id":%q,"items":[{"product_id":%q,"quantity":"5"}]}`, warehouseID, productID)
	res = postTransaction(t, router, goodBody, "retry-1")
	require.Equal(t, http.StatusCreated, res.Code)

	// Replaying a processed key is still rejected.
	res = postTransaction(t, router, goodBody, "retry-1")
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestCreateWithoutIdempotencyKeySkipsGuard(t *testing.T) {
	guard := newMemoryGuard()
	router := newLedgerRouter(t, guard)

	body := fmt.Sprintf(`{"transaction_type":"inbound","warehouse_id":%q,"items":[{"product_id":%q,"quantity":"2"}]}`,
		uuid.New(), uuid.New())
	res := postTransaction(t, router, body, "")
	require.Equal(t, http.StatusCreated, res.Code)
	require.Empty(t, guard.claimed)
}
