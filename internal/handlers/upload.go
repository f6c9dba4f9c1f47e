package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"travesia_payments/internal/repository/journal"
	"travesia_payments/internal/transport/auth"

	"github.com/minio/minio-go/v7"
)

// Upload accepts multipart/form-data with `file` and an optional `type`
// field, stores the file in S3 and registers an import record. The returned
// id and path feed POST /imports.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		h.JSON(w, http.StatusBadRequest, errorResp{Error: "bad multipart: " + err.Error()})
		return
	}

	kind := strings.TrimSpace(r.FormValue("type"))
	if kind == "" {
		kind = "import_debts"
	}

	f, fh, err := r.FormFile("file")
	if err != nil {
		h.JSON(w, http.StatusBadRequest, errorResp{Error: "file is required"})
		return
	}
	defer f.Close()

	if h.S3 == nil || h.S3.Client == nil {
		h.JSON(w, http.StatusServiceUnavailable, errorResp{Error: "storage not configured"})
		return
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("imports/%s/%d-%s", now.Format("2006/01"), now.UnixNano(), path.Base(fh.Filename))

	size := fh.Size
	if size <= 0 {
		size = -1
	}

	info, err := h.S3.Client.PutObject(r.Context(), h.S3.Bucket, key, f, size, minio.PutObjectOptions{ContentType: fh.Header.Get("Content-Type")})
	if err != nil {
		h.Logger.Errorf("[UPLOAD][ERR] s3 put: %v", err)
		h.JSON(w, http.StatusBadGateway, errorResp{Error: "failed to store file"})
		return
	}

	s3path := fmt.Sprintf("s3://%s/%s", h.S3.Bucket, key)
	bucket := h.S3.Bucket
	rec := journal.Record{
		Status:    journal.StatusParsed,
		Type:      kind,
		Path:      &s3path,
		Bucket:    &bucket,
		Key:       &key,
		SizeBytes: &info.Size,
	}
	if uid, err := auth.GetUserID(r.Context()); err == nil {
		rec.UserID = &uid
	}

	ins, err := journal.InsertImportRecord(r.Context(), h.Mongo, rec)
	if err != nil {
		h.Logger.Errorf("[UPLOAD][ERR] journal insert: %v", err)
		h.JSON(w, http.StatusInternalServerError, errorResp{Error: "failed to register import"})
		return
	}

	h.Logger.Infof("[UPLOAD] type=%s key=%s size=%d", kind, key, info.Size)
	h.JSON(w, http.StatusCreated, map[string]any{"id": ins.InsertedID, "path": s3path, "type": kind})
}
