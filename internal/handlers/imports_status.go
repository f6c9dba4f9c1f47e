package handlers

import (
	"net/http"
	"strconv"

	"travesia_payments/internal/repository/journal"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
)

func (h *Handlers) ListImports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := bson.M{}
	if t := q.Get("type"); t != "" {
		filter["type"] = t
	}
	if s := q.Get("status"); s != "" {
		filter["status"] = s
	}

	limit, _ := strconv.ParseInt(q.Get("limit"), 10, 64)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	skip, _ := strconv.ParseInt(q.Get("skip"), 10, 64)

	recs, total, err := journal.ListImportRecords(r.Context(), h.Mongo, filter, limit, skip)
	if err != nil {
		h.Logger.Errorf("[HTTP][IMPORTS][LIST][ERR] %v", err)
		h.JSON(w, http.StatusServiceUnavailable, errorResp{Error: "journal unavailable"})
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"data": recs, "total": total})
}

func (h *Handlers) GetImport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if h.Mongo == nil {
		h.JSON(w, http.StatusServiceUnavailable, errorResp{Error: "journal unavailable"})
		return
	}
	rec, err := journal.FindImportRecordByID(r.Context(), h.Mongo, id)
	if err != nil {
		h.JSON(w, http.StatusNotFound, errorResp{Error: "import record not found"})
		return
	}
	h.JSON(w, http.StatusOK, rec)
}
