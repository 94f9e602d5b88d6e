package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	r.CartMutation("add")
	r.Commit(3, time.Second)
	r.Deleted(1)
	r.RemoteFailure("update")
	r.OrderPlaced()
	r.Audited(2)
}

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestCounters(t *testing.T) {
	r := NewRegistry()
	r.CartMutation("add")
	r.CartMutation("add")
	r.CartMutation("remove")
	r.Commit(3, 10*time.Millisecond)
	r.RemoteFailure("update")

	body := scrape(t, r)
	assert.Contains(t, body, `bulls_cart_mutations_total{op="add"} 2`)
	assert.Contains(t, body, `bulls_cart_mutations_total{op="remove"} 1`)
	assert.Contains(t, body, "bulls_table_commits_total 1")
	assert.Contains(t, body, "bulls_table_patches_total 3")
	assert.Contains(t, body, `bulls_remote_failures_total{op="update"} 1`)
	assert.Contains(t, body, "bulls_table_commit_seconds_count 1")
}

func TestHandlerServesMetrics(t *testing.T) {
	r := NewRegistry()
	r.OrderPlaced()
	assert.Contains(t, scrape(t, r), "bulls_orders_placed_total 1")
}
