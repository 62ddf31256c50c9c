package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/contxt-cli/internal/pkg/controlsim"
	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

type fakeSnapshotter []controlsim.ComponentStatus

func (f fakeSnapshotter) Snapshot() []controlsim.ComponentStatus {
	return f
}

type fakeTransitioner struct {
	gotID    string
	gotEvent string
	err      error
}

func (f *fakeTransitioner) TransitionEvent(ctx context.Context, controlEventID string, transitionEvent string) (*models.TransitionResult, error) {
	f.gotID, f.gotEvent = controlEventID, transitionEvent
	if f.err != nil {
		return nil, f.err
	}
	return &models.TransitionResult{
		ControlEvent: &models.ControlEvent{
			ID:           controlEventID,
			StateMachine: &models.StateMachine{CurrentState: "approved"},
		},
	}, nil
}

func TestStatusHandler(t *testing.T) {
	next := time.Date(2021, 6, 1, 14, 0, 10, 0, time.UTC)
	h := NewStatusHandler(fakeSnapshotter{{
		Component:      "chiller-1",
		Definition:     "demand-response",
		Framework:      controlsim.FrameworkState{ControlEventID: "ce-1", State: "pending"},
		CurrentState:   "pending",
		NextTransition: &next,
	}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Components, 1)
	assert.Equal(t, "chiller-1", body.Components[0].Component)
	assert.Equal(t, controlsim.StateName("pending"), body.Components[0].Framework.State)
	assert.True(t, next.Equal(*body.Components[0].NextTransition))
	assert.NotEmpty(t, body.Instance)
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"dev"}`, rec.Body.String())
}

func postTransition(h *transitionHandler, contentType string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/transition", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTransitionHandler(t *testing.T) {
	control := &fakeTransitioner{}
	h := NewTransitionHandler(control, time.Second)

	rec := postTransition(&h, "application/json", `{"controlEventId": "ce-1", "transitionEvent": "approve"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ce-1", control.gotID)
	assert.Equal(t, "approve", control.gotEvent)

	var result models.TransitionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "approved", result.NewState())
}

func TestTransitionHandlerRejectsBadRequests(t *testing.T) {
	control := &fakeTransitioner{}
	h := NewTransitionHandler(control, 0)

	assert.Equal(t, http.StatusBadRequest, postTransition(&h, "text/plain", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, postTransition(&h, "application/json", `{"controlEventId": "ce-1"} {}`).Code)
	assert.Equal(t, http.StatusBadRequest, postTransition(&h, "application/json", `{"unknown": true}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, postTransition(&h, "application/json", `{"controlEventId": "ce-1"}`).Code)
	assert.Empty(t, control.gotID)
}

func TestTransitionHandlerUpstreamFailure(t *testing.T) {
	h := NewTransitionHandler(&fakeTransitioner{err: errors.New("not allowed from pending")}, 0)

	rec := postTransition(&h, "", `{"controlEventId": "ce-1", "transitionEvent": "approve"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "not allowed from pending")
}
