package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.CatalogMutation("add", nil)
	m.CatalogMutation("add", errors.New("dup"))
	m.Alert("fired")
	m.Alert("fired")
	m.CatalogSize(3)
	m.Checkpoint("ok", 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogMutations.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogMutations.WithLabelValues("add", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.alerts.WithLabelValues("fired")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.catalogProducts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkpoints.WithLabelValues("ok")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CatalogMutation("add", nil)
		m.Alert("fired")
		m.Login("ok")
		m.OTPVerification("ok")
		m.Checkpoint("ok", time.Second)
		m.CatalogSize(1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Login("otp_pending")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `stockwarden_auth_logins_total{result="otp_pending"} 1`)
}
