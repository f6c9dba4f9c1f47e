package handlers

import (
	"errors"
	"net/http"

	"travesia_payments/internal/ports"
	"travesia_payments/internal/services/allocation"
	"travesia_payments/internal/services/payments"
	"travesia_payments/internal/services/sessions"
)

type errorResp struct {
	Error         string            `json:"error"`
	Fields        map[string]string `json:"fields,omitempty"`
	Remaining     string            `json:"remaining,omitempty"`
	OverAllocated *bool             `json:"over_allocated,omitempty"`
}

func statusFor(err error) int {
	var fe allocation.FieldErrors
	var imb *allocation.ImbalanceError

	switch {
	case errors.As(err, &fe), errors.As(err, &imb):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sessions.ErrNotFound), errors.Is(err, allocation.ErrRowIndex):
		return http.StatusNotFound
	case errors.Is(err, allocation.ErrFullyDistributed),
		errors.Is(err, allocation.ErrDuplicateDebtor),
		errors.Is(err, allocation.ErrInvalidState),
		errors.Is(err, allocation.ErrSubmitInFlight),
		errors.Is(err, sessions.ErrConflict),
		errors.Is(err, ports.ErrBalanceChanged):
		return http.StatusConflict
	case errors.Is(err, allocation.ErrUnknownDebtor),
		errors.Is(err, allocation.ErrNoDebts),
		errors.Is(err, allocation.ErrDebtNotOwned),
		errors.Is(err, allocation.ErrRowOutOfBounds),
		errors.Is(err, allocation.ErrNotInitialized):
		return http.StatusUnprocessableEntity
	case errors.Is(err, payments.ErrBackendSubmit), errors.Is(err, ports.ErrUnauthorized):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	resp := errorResp{Error: err.Error()}

	var fe allocation.FieldErrors
	var imb *allocation.ImbalanceError
	switch {
	case errors.As(err, &fe):
		resp.Error = "invalid payment header"
		resp.Fields = fe
	case errors.As(err, &imb):
		over := imb.OverAllocated()
		resp.Error = imb.Message()
		resp.Remaining = imb.Remaining.StringFixed(2)
		resp.OverAllocated = &over
	}

	if code >= http.StatusInternalServerError {
		h.Logger.Errorf("[HTTP][ERR] status=%d: %v", code, err)
	}
	h.JSON(w, code, resp)
}
