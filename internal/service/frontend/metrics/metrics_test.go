package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Collects(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(NewCollector("1.2.3"))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["mnemo_info"])
	assert.True(t, names["mnemo_uptime_seconds"])
}

func TestRegistry_MiddlewareCountsRequests(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(NewCollector("test"))
	handler := reg.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() != "mnemo_http_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			found = true
			assert.Equal(t, float64(1), m.GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}
