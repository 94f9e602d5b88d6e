// Package metrics exposes the storefront's Prometheus counters. A nil
// *Registry is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg            *prometheus.Registry
	CartMutations  *prometheus.CounterVec
	TableCommits   prometheus.Counter
	TablePatches   prometheus.Counter
	TableDeletes   prometheus.Counter
	CommitSeconds  prometheus.Histogram
	RemoteFailures *prometheus.CounterVec
	OrdersPlaced   prometheus.Counter
	AuditAppended  prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulls_cart_mutations_total",
		Help: "Cart mutations by operation.",
	}, []string{"op"})
	tableCommits := prometheus.NewCounter(prometheus.CounterOpts{Name: "bulls_table_commits_total"})
	tablePatches := prometheus.NewCounter(prometheus.CounterOpts{Name: "bulls_table_patches_total"})
	tableDeletes := prometheus.NewCounter(prometheus.CounterOpts{Name: "bulls_table_deletes_total"})
	commitSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bulls_table_commit_seconds",
		Buckets: prometheus.DefBuckets,
	})
	remoteFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulls_remote_failures_total",
		Help: "Failed calls against the document store by operation.",
	}, []string{"op"})
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{Name: "bulls_orders_placed_total"})
	auditAppended := prometheus.NewCounter(prometheus.CounterOpts{Name: "bulls_audit_appended_total"})

	r.MustRegister(cartMutations, tableCommits, tablePatches, tableDeletes, commitSeconds, remoteFailures, ordersPlaced, auditAppended)
	return &Registry{
		reg:            r,
		CartMutations:  cartMutations,
		TableCommits:   tableCommits,
		TablePatches:   tablePatches,
		TableDeletes:   tableDeletes,
		CommitSeconds:  commitSeconds,
		RemoteFailures: remoteFailures,
		OrdersPlaced:   ordersPlaced,
		AuditAppended:  auditAppended,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) CartMutation(op string) {
	if r == nil {
		return
	}
	r.CartMutations.WithLabelValues(op).Inc()
}

func (r *Registry) Commit(patches int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.TableCommits.Inc()
	r.TablePatches.Add(float64(patches))
	r.CommitSeconds.Observe(elapsed.Seconds())
}

func (r *Registry) Deleted(n int) {
	if r == nil {
		return
	}
	r.TableDeletes.Add(float64(n))
}

func (r *Registry) RemoteFailure(op string) {
	if r == nil {
		return
	}
	r.RemoteFailures.WithLabelValues(op).Inc()
}

func (r *Registry) OrderPlaced() {
	if r == nil {
		return
	}
	r.OrdersPlaced.Inc()
}

func (r *Registry) Audited(n int) {
	if r == nil {
		return
	}
	r.AuditAppended.Add(float64(n))
}
