package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.LinesTotal.WithLabelValues("stdout").Add(3)
	m.DetectionsTotal.WithLabelValues("5xx").Inc()
	m.NotificationsTotal.WithLabelValues(ResultSent).Inc()

	assert.InDelta(t, 3, testutil.ToFloat64(m.LinesTotal.WithLabelValues("stdout")), 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `catlog_ingest_lines_total{stream="stdout"} 3`)
	assert.Contains(t, body, `catlog_detect_status_total{class="5xx"} 1`)
	assert.Contains(t, body, `catlog_notify_total{result="sent"} 1`)
}
