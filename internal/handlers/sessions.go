package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"travesia_payments/internal/repository/journal"
	"travesia_payments/internal/services/allocation"
	"travesia_payments/internal/transport/auth"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

func userID(r *http.Request) string {
	uid, _ := auth.GetUserID(r.Context())
	return uid
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResp{Error: "bad JSON: " + err.Error()})
		return false
	}
	return true
}

func rowIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil || idx < 0 {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResp{Error: "row index must be a non-negative integer"})
		return 0, false
	}
	return idx, true
}

func (h *Handlers) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.Payments.PaymentMethods(r.Context())
	if err != nil {
		h.Logger.Errorf("[HTTP][METHODS][ERR] %v", err)
		h.JSON(w, http.StatusBadGateway, errorResp{Error: "payment methods unavailable"})
		return
	}

	type item struct {
		Code              string `json:"code"`
		Label             string `json:"label"`
		Icon              string `json:"icon"`
		IconAsset         string `json:"icon_asset"`
		RequiresReference bool   `json:"requires_reference"`
	}
	out := make([]item, 0, len(methods))
	for _, m := range methods {
		out = append(out, item{
			Code:              m.Code,
			Label:             m.Label,
			Icon:              string(m.Icon),
			IconAsset:         m.Icon.Asset(),
			RequiresReference: m.RequiresReference,
		})
	}
	h.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.Payments.Open(r.Context(), userID(r))
	if err != nil {
		h.Logger.Errorf("[HTTP][OPEN][ERR] %v", err)
		h.JSON(w, http.StatusBadGateway, errorResp{Error: "could not load debtors"})
		return
	}
	h.JSON(w, http.StatusCreated, v)
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.Payments.Get(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, v)
}

func (h *Handlers) CancelSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Payments.Cancel(r.Context(), mux.Vars(r)["id"], userID(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) SetHeader(w http.ResponseWriter, r *http.Request) {
	var in allocation.HeaderInput
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := h.Payments.SetHeader(r.Context(), mux.Vars(r)["id"], userID(r), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, v)
}

func (h *Handlers) Back(w http.ResponseWriter, r *http.Request) {
	v, err := h.Payments.Back(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, v)
}

func (h *Handlers) Candidates(w http.ResponseWriter, r *http.Request) {
	debtors, err := h.Payments.Candidates(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"data": debtors})
}

type addRowRequest struct {
	DebtorID string `json:"debtor_id"`
}

func (h *Handlers) AddRow(w http.ResponseWriter, r *http.Request) {
	var req addRowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DebtorID) == "" {
		h.JSON(w, http.StatusBadRequest, errorResp{Error: "debtor_id is required"})
		return
	}
	v, err := h.Payments.AddDebtor(r.Context(), mux.Vars(r)["id"], userID(r), req.DebtorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.JSON(w, http.StatusCreated, v)
}

type patchRowRequest struct {
	DebtID *string          `json:"debt_id,omitempty"`
	Amount *decimal.Decimal `json:"amount_to_apply,omitempty"`
}

// PatchRow changes the target debt, the amount, or both. A debt change
// resets the amount, so it is applied first.
func (h *Handlers) PatchRow(w http.ResponseWriter, r *http.Request) {
	idx, ok := rowIndex(w, r)
	if !ok {
		return
	}
	var req patchRowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DebtID == nil && req.Amount == nil {
		h.JSON(w, http.StatusBadRequest, errorResp{Error: "debt_id or amount_to_apply is required"})
		return
	}

	v, err := h.Payments.UpdateRow(r.Context(), mux.Vars(r)["id"], userID(r), idx, req.DebtID, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, v)
}

func (h *Handlers) DeleteRow(w http.ResponseWriter, r *http.Request) {
	idx, ok := rowIndex(w, r)
	if !ok {
		return
	}
	v, err := h.Payments.RemoveRow(r.Context(), mux.Vars(r)["id"], userID(r), idx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, v)
}

func (h *Handlers) Validation(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Payments.Validate(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"valid": true, "summary": sum})
}

func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	res, err := h.Payments.Submit(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.JSON(w, http.StatusCreated, res)
}

func (h *Handlers) SessionEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.Payments.Get(r.Context(), id, userID(r)); err != nil {
		h.writeError(w, err)
		return
	}
	events, err := journal.ListSessionEvents(r.Context(), h.Mongo, id, 200)
	if err != nil {
		h.Logger.Errorf("[HTTP][EVENTS][ERR] %v", err)
		h.JSON(w, http.StatusServiceUnavailable, errorResp{Error: "journal unavailable"})
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"data": events})
}
