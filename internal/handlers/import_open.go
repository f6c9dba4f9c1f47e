package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"travesia_payments/internal/services/importer"
)

type importRequest struct {
	Type           string `json:"type"`
	FilePath       string `json:"file_path"`
	BatchSize      int    `json:"batch_size"`
	TimeoutMin     int    `json:"timeout_minutes,omitempty"`
	ImportRecordID string `json:"import_record_id"`
}

// Import starts a background import and answers 202 right away. Progress is
// tracked on the import record.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		h.JSON(w, http.StatusBadRequest, errorResp{Error: "file_path is required"})
		return
	}
	if req.Type == "" {
		req.Type = "import_debts"
	}
	if h.Importer == nil {
		h.JSON(w, http.StatusServiceUnavailable, errorResp{Error: "importer not configured"})
		return
	}
	if _, ok := h.Importer.Processors[req.Type]; !ok {
		h.JSON(w, http.StatusBadRequest, errorResp{Error: "unknown import type: " + req.Type})
		return
	}
	if req.BatchSize <= 0 {
		req.BatchSize = h.Importer.DefaultBS
	}

	go h.runImport(req)

	h.JSON(w, http.StatusAccepted, map[string]any{
		"status":           "started",
		"type":             req.Type,
		"file_path":        req.FilePath,
		"batch_size":       req.BatchSize,
		"import_record_id": req.ImportRecordID,
	})
}

func (h *Handlers) runImport(req importRequest) {
	start := time.Now()

	timeout := 15 * time.Minute
	if req.TimeoutMin > 0 {
		timeout = time.Duration(req.TimeoutMin) * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := h.Importer.Import(ctx, importer.Request{
		Type:           req.Type,
		FilePath:       req.FilePath,
		BatchSize:      req.BatchSize,
		ImportRecordID: req.ImportRecordID,
	})
	if err != nil {
		h.Logger.Errorf("[IMPORT][ERR][BG] type=%q path=%q err=%v took=%s",
			req.Type, req.FilePath, err, time.Since(start))
		return
	}

	h.Logger.Infof("[IMPORT][OK][BG] type=%q src=%s fmt=%s rows=%d took=%s",
		req.Type, res.Source, res.Format, res.RowsProcessed, time.Since(start))
}
