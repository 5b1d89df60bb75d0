package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflow_CountersAndHandler(t *testing.T) {
	m := New()
	m.Submissions.WithLabelValues("project").Inc()
	m.Decisions.WithLabelValues("budget_change", "approved").Inc()
	m.FundsTransferred.Add(2000)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("project")))
	assert.Equal(t, 2000.0, testutil.ToFloat64(m.FundsTransferred))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ber_decisions_total{decision="approved",kind="budget_change"} 1`)
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.Errors.WithLabelValues("submit_invoice", "LIMIT_EXCEEDED").Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Errors.WithLabelValues("submit_invoice", "LIMIT_EXCEEDED")))
}
