package pyth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"LdsEngine/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOracle(t *testing.T, handler http.HandlerFunc) *Oracle {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	oracle := NewOracle(&config.OracleConfig{
		BaseURL:    server.URL,
		Timeout:    2,
		RetryCount: 2,
		RateLimit:  1000,
	}, logger)
	return oracle.(*Oracle)
}

func TestGetPrice(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/price", r.URL.Path)
		assert.Equal(t, "SOL/USD", r.URL.Query().Get("symbol"))
		assert.NotEmpty(t, r.URL.Query().Get("at"))
		fmt.Fprint(w, `{"symbol":"SOL/USD","price":142.5,"timestamp":1700000000}`)
	})

	price, err := oracle.GetPrice(context.Background(), "SOL/USD", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 142.5, price)
}

func TestGetPriceRetriesOnServerError(t *testing.T) {
	var calls int32
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"symbol":"SOL/USD","price":99.0,"timestamp":1700000000}`)
	})

	price, err := oracle.GetPrice(context.Background(), "SOL/USD", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 99.0, price)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetPriceRejectsNonPositive(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"SOL/USD","price":0,"timestamp":1700000000}`)
	})

	_, err := oracle.GetPrice(context.Background(), "SOL/USD", time.Now())
	assert.Error(t, err)
}

func TestGetPriceExhaustsRetries(t *testing.T) {
	var calls int32
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := oracle.GetPrice(context.Background(), "SOL/USD", time.Now())
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
