package middlewares

import (
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
)

var correlationIDRegexp = regexp.MustCompile(`^[\w-_]{3,64}$`)

const badCorrelationID = "<Bad_Correlation_Id>"

type CorrelationMw struct {
	headerName string
	next       http.Handler
}

func NewCorrelationMw(headerName string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewCorrelation(headerName, next)
	}
}

func NewCorrelation(headerName string, next http.Handler) *CorrelationMw {
	return &CorrelationMw{headerName: headerName, next: next}
}

func (mw *CorrelationMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	// Copy the correlation header from the request to the response, and use
	// a good one as the transaction ID for the rest of the chain
	id, ok := mw.validateID(r)
	if ok {
		rw.Header().Set(mw.headerName, id)
		if id != badCorrelationID {
			logging.Logger(r.Context()).Debugf("correlation id %s", id)
			r = r.WithContext(logging.WithTxnID(r.Context(), id))
		}
	}

	mw.next.ServeHTTP(rw, r)
}

func (mw *CorrelationMw) validateID(r *http.Request) (string, bool) {
	hn := http.CanonicalHeaderKey(mw.headerName)
	ids, ok := r.Header[hn]

	// Validate the ID if it was supplied
	if ok {
		id := ids[0]
		if correlationIDRegexp.MatchString(id) {
			return id, true
		}

		return badCorrelationID, true
	}

	return "", false
}
