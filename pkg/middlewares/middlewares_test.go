package middlewares

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
)

func newTestRouter(h http.HandlerFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(NewCorsMw(DefaultCorsOptions()))
	r.Use(NewLoggingMw(true))
	r.Use(NewRecoveryMw())
	r.Use(NewCorrelationMw("X-Correlation-ID"))
	r.Use(NewMetricsMw())
	r.HandleFunc("/things/{id}", h)
	return r
}

func TestLoggingSetsTxnID(t *testing.T) {
	var seen string
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logging.TxnID(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/1", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Txn-ID"))
	assert.Equal(t, rec.Header().Get("X-Txn-ID"), seen)
}

func TestCorrelationID(t *testing.T) {
	var seen string
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logging.TxnID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/things/1", nil)
	req.Header.Set("X-Correlation-ID", "dashboard-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "dashboard-42", rec.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "dashboard-42", seen)

	req = httptest.NewRequest(http.MethodGet, "/things/1", nil)
	req.Header.Set("X-Correlation-ID", "no spaces allowed!")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, badCorrelationID, rec.Header().Get("X-Correlation-ID"))
	assert.Equal(t, rec.Header().Get("X-Txn-ID"), seen)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/1", nil))
	assert.Empty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestRecovery(t *testing.T) {
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	panics := httpPanicsTotal.WithLabelValues("/things/{id}")
	before := testutil.ToFloat64(panics)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/1", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "boom")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, rec.Header().Get("X-Txn-ID"), body["txnId"])
	assert.Equal(t, before+1, testutil.ToFloat64(panics))
}

func TestCorsHeaders(t *testing.T) {
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/things/1", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsCountByRoute(t *testing.T) {
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := httpRequestsTotal.WithLabelValues("/things/{id}", "get", "404")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/"+id, nil))
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestLoggingReaderPassesBodyThrough(t *testing.T) {
	var got string
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		b, err := ioutil.ReadAll(r.Body)
		require.NoError(t, err)
		got = string(b)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/things/1", strings.NewReader(`{"a":1}`)))
	assert.Equal(t, `{"a":1}`, got)
}
