package middlewares

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/go-openapi/runtime"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
)

var httpPanicsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "contxt",
	Subsystem: "http",
	Name:      "panics_total",
	Help:      "Handler panics caught by the recovery middleware, by route",
}, []string{"route"})

func init() {
	prometheus.MustRegister(httpPanicsTotal)
}

// RecoveryMw turns a handler panic into a 500 carrying the transaction ID,
// so the caller can find the stack trace in the log
type RecoveryMw struct {
	next http.Handler
}

func NewRecoveryMw() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewRecovery(next)
	}
}

func NewRecovery(next http.Handler) *RecoveryMw {
	return &RecoveryMw{next: next}
}

func (mw *RecoveryMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			if err == http.ErrAbortHandler {
				panic(err)
			}

			logging.Logger(r.Context()).Errorf("caught panic: %v : %s", err, debug.Stack())
			httpPanicsTotal.WithLabelValues(routeName(r)).Inc()

			writePanicResponse(rw, r)
		}
	}()

	mw.next.ServeHTTP(rw, r)
}

func writePanicResponse(rw http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"error": http.StatusText(http.StatusInternalServerError),
	}
	if id, ok := logging.TxnID(r.Context()); ok {
		body["txnId"] = id
	}

	b, err := json.Marshal(body)
	if err != nil {
		http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", runtime.JSONMime)
	rw.WriteHeader(http.StatusInternalServerError)
	rw.Write(b)
}
