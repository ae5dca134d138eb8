package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/resource_guard/internal/metrics"
	"github.com/Dicklesworthstone/resource_guard/internal/model"
)

type staticSource struct {
	reading model.Reading
	ok      bool
}

func (s staticSource) LastKnown() (model.Reading, bool) { return s.reading, s.ok }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatus(t *testing.T) {
	reading := model.Reading{Timestamp: time.Unix(10, 0).UTC(), CPU: 5, Memory: 90, Disk: 33, PredictedDisk: 34, Stale: true, Error: "disk: boom"}
	srv := New(":0", staticSource{reading: reading, ok: true}, nil, prometheus.NewRegistry())

	rec := get(t, srv.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Reading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, reading, got)

	srv = New(":0", staticSource{}, nil, prometheus.NewRegistry())
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv.Handler(), "/status").Code)
}

func TestSamplesAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg).Report(model.Reading{CPU: 7, Memory: 8, Disk: 9, PredictedDisk: 10})
	samples := []model.Sample{{Timestamp: time.Unix(1, 0), CPU: 1, Memory: 2, Disk: 3}}
	srv := New(":0", staticSource{}, samples, reg)

	rec := get(t, srv.Handler(), "/samples")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "time,cpu,memory,disk\n"))

	rec = get(t, srv.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `resguard_predicted_disk_percent 10`)

	assert.Equal(t, "ok", get(t, srv.Handler(), "/healthz").Body.String())
}

func TestRunShutsDown(t *testing.T) {
	srv := New("127.0.0.1:0", staticSource{}, nil, prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
