package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/arbiter"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/catalog"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCatalog implements only what each test drives; calls to anything
// else panic through the embedded nil interface.
type stubCatalog struct {
	Catalog
	deleteAssignment func(ctx context.Context, id int64) error
}

func (s stubCatalog) DeleteAssignment(ctx context.Context, id int64) error {
	return s.deleteAssignment(ctx, id)
}

type stubGrants map[string]int64

func (g stubGrants) ResolveToken(_ context.Context, token string) (int64, error) {
	return g[token], nil
}

func newDeletionRouter(t *testing.T, cat Catalog, arb *arbiter.Arbiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(cat, nil, nil, arb).RegisterRoutes(router.Group("/admin"))
	return router
}

func TestDeleteAssignmentEvictsLiveSession(t *testing.T) {
	ctx := context.Background()
	arb := arbiter.New(session.NewMemoryStore(), stubGrants{"tok-9": 9}, arbiter.ExactMatcher{})

	lease, err := arb.Claim(ctx, "tok-9", arbiter.Identity{IPAddress: "10.0.0.1", UserAgent: "phone"}, "")
	require.NoError(t, err)

	router := newDeletionRouter(t, stubCatalog{
		deleteAssignment: func(_ context.Context, id int64) error {
			require.Equal(t, int64(9), id)
			return nil
		},
	}, arb)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/admin/assignments/9", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// The deleted assignment's holder must not survive the deletion.
	err = arb.Heartbeat(ctx, lease.Credential)
	assert.ErrorIs(t, err, arbiter.ErrNotFound)
}

func TestDeleteAssignmentMissingRowKeepsSessionsUntouched(t *testing.T) {
	ctx := context.Background()
	arb := arbiter.New(session.NewMemoryStore(), stubGrants{"tok-9": 9}, arbiter.ExactMatcher{})

	lease, err := arb.Claim(ctx, "tok-9", arbiter.Identity{IPAddress: "10.0.0.1", UserAgent: "phone"}, "")
	require.NoError(t, err)

	router := newDeletionRouter(t, stubCatalog{
		deleteAssignment: func(_ context.Context, _ int64) error {
			return catalog.ErrNotFound
		},
	}, arb)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/admin/assignments/9", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.NoError(t, arb.Heartbeat(ctx, lease.Credential))
}

func TestDeleteAssignmentStorageFault(t *testing.T) {
	router := newDeletionRouter(t, stubCatalog{
		deleteAssignment: func(_ context.Context, _ int64) error {
			return errors.New("pq: connection reset")
		},
	}, arbiter.New(session.NewMemoryStore(), stubGrants{}, arbiter.ExactMatcher{}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/admin/assignments/9", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
