package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

// Transitioner fires control event transitions; controlsim.ControlAPI
// implementations satisfy it
type Transitioner interface {
	TransitionEvent(ctx context.Context, controlEventID string, transitionEvent string) (*models.TransitionResult, error)
}

type transitionRequest struct {
	ControlEventID  string `json:"controlEventId"`
	TransitionEvent string `json:"transitionEvent"`
}

func (m *transitionRequest) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.RequiredString("controlEventId", "body", m.ControlEventID); err != nil {
		res = append(res, err)
	}

	if err := validate.RequiredString("transitionEvent", "body", m.TransitionEvent); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

/*
 * TransitionHandler lets an operator push a control event on by hand while
 * the simulator runs, eg. to approve a state the simulator is waiting in
 */
type transitionHandler struct {
	control Transitioner
	timeout time.Duration
}

func NewTransitionHandler(control Transitioner, timeout time.Duration) transitionHandler {
	return transitionHandler{
		control: control,
		timeout: timeout,
	}
}

func (h *transitionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		logging.Logger(r.Context()).WithError(err).Warn("decoding transition request")
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	if err := req.Validate(formats); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	logging.Logger(ctx).Infof("manual transition of control event %s with %s", req.ControlEventID, req.TransitionEvent)
	result, err := h.control.TransitionEvent(ctx, req.ControlEventID, req.TransitionEvent)
	if err != nil {
		logging.Logger(ctx).WithError(err).Error("transitioning control event")
		writeError(w, r, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}
