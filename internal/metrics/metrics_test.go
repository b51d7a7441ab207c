package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Idempotent(t *testing.T) {
	Init(nil)
	first := GetRegistry()
	Init(nil)

	require.NotNil(t, first)
	assert.Same(t, first, GetRegistry())
}

func TestHandler_ExposesCollectors(t *testing.T) {
	FramesProcessed.Inc()
	Classifications.WithLabelValues("happy").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "moodlens_frames_processed_total")
	assert.Contains(t, body, `moodlens_classifications_total{label="happy"}`)
}

func TestInstrumentHandler_CountsByCode(t *testing.T) {
	h := InstrumentHandler("teapot", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("teapot", "get", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("teapot", "get", "418"))

	assert.Equal(t, before+1, after)
}
