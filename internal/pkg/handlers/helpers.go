package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-openapi/runtime"
	"github.com/go-openapi/runtime/middleware/header"
	"github.com/go-openapi/strfmt"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
)

// For request validation routines
var formats strfmt.Registry

func init() {
	// Default validators
	formats = strfmt.NewFormats()
}

type errorResponse struct {
	Error string `json:"error"`
	TxnID string `json:"txnId,omitempty"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Header.Get("Content-Type") != "" {
		value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
		if value != runtime.JSONMime {
			return fmt.Errorf("expected JSON request, got %s", value)
		}
	}

	// 100kb max body
	reader := http.MaxBytesReader(w, r.Body, 100*1024)
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must only contain a single JSON object")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		logging.Logger(r.Context()).WithError(err).Error("encoding response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", runtime.JSONMime)
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		logging.Logger(r.Context()).WithError(err).Warn("writing response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	if id, ok := logging.TxnID(r.Context()); ok {
		resp.TxnID = id
	}
	writeJSON(w, r, status, resp)
}
