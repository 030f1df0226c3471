package openf1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexf1/pitwall/internal/config"
	"github.com/apexf1/pitwall/pkg/logger"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(config.OpenF1Config{
		BaseURL:               baseURL,
		RequestTimeoutSeconds: 5,
		MaxRetries:            3,
		BackoffBaseMS:         1,
		ServerErrorRetryMS:    1,
	}, logger.Nop())
}

func TestGetRetriesRateLimit(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[{"a":1},{"a":2}]`))
	}))
	defer srv.Close()

	records, err := testClient(t, srv.URL).Get(context.Background(), "laps", nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(3), requests.Load())
}

func TestGetRetriesServerError(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"a":1}]`))
	}))
	defer srv.Close()

	records, err := testClient(t, srv.URL).Get(context.Background(), "weather", nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestGetExhaustedRetriesReturnsEmpty(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	records, err := testClient(t, srv.URL).Get(context.Background(), "laps", nil)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.Equal(t, int32(3), requests.Load())
}

func TestGetNonRetryableStatus(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Get(context.Background(), "laps", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 404")
	assert.Equal(t, int32(1), requests.Load(), "client errors must not be retried")
}

func TestGetCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(t, srv.URL).Get(ctx, "laps", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetQueryParams(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	from := time.Date(2023, 7, 1, 14, 0, 0, 0, time.UTC)
	to := from.Add(30 * time.Minute)
	_, err := testClient(t, srv.URL).Locations(context.Background(), 9222, 1, from, to)
	require.NoError(t, err)

	assert.Contains(t, query, "session_key=9222")
	assert.Contains(t, query, "driver_number=1")
	assert.Contains(t, query, "date%3E=2023-07-01T14%3A00%3A00Z")
	assert.Contains(t, query, "date%3C=2023-07-01T14%3A30%3A00Z")
}

func TestLapsSkipsMalformedRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"driver_number":1,"lap_number":5},"not an object",{"driver_number":1,"lap_number":6}]`))
	}))
	defer srv.Close()

	laps, err := testClient(t, srv.URL).Laps(context.Background(), 9222, 1)
	require.NoError(t, err)
	require.Len(t, laps, 2)
	assert.Equal(t, 5, laps[0].LapNumber)
	assert.Equal(t, 6, laps[1].LapNumber)
}
