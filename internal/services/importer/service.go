package importer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	mg "travesia_payments/internal/config/connections/mongo"
	"travesia_payments/internal/ports"
	"travesia_payments/internal/repository/journal"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

type Request struct {
	Type           string
	FilePath       string
	BatchSize      int
	ImportRecordID string
}

type Result struct {
	Source        string
	FilePath      string
	Format        string
	RowsProcessed int
	SHA256        string
	ContentType   string
	Bucket        string
	Key           string
	SizeBytes     int64
}

// Service streams a CSV or XLSX file into a processor in batches and keeps
// the import record status in the journal.
type Service struct {
	Opener     ports.FileOpener
	Processors map[string]ports.Processor
	DefaultBS  int
	Journal    *mg.Mongo
	Log        *logrus.Logger
}

func NewService(opener ports.FileOpener, registry map[string]ports.Processor, defaultBatch int) *Service {
	if defaultBatch <= 0 {
		defaultBatch = 1000
	}
	return &Service{Opener: opener, Processors: registry, DefaultBS: defaultBatch, Log: logrus.StandardLogger()}
}

func (s *Service) setStatus(ctx context.Context, id, status string, count int) {
	if s.Journal == nil || id == "" {
		return
	}
	if err := journal.UpdateImportRecordStatus(ctx, s.Journal, id, status, count); err != nil {
		s.logger().Warnf("[IMP][JOURNAL][WARN] id=%s status=%s: %v", id, status, err)
	}
}

func (s *Service) Import(ctx context.Context, req Request) (Result, error) {
	res, err := s.run(ctx, req)
	if err != nil {
		s.setStatus(ctx, req.ImportRecordID, journal.StatusFailed, -1)
		return Result{}, err
	}
	s.setStatus(ctx, req.ImportRecordID, journal.StatusDone, res.RowsProcessed)
	return res, nil
}

func (s *Service) run(ctx context.Context, req Request) (Result, error) {
	t0 := time.Now()
	ctx = context.WithValue(ctx, ports.CtxImportRecordID, req.ImportRecordID)
	log := s.logger().WithField("import_record_id", req.ImportRecordID)
	log.Infof("[IMP][START] type=%q path=%q batch_size=%d", req.Type, req.FilePath, req.BatchSize)

	proc, ok := s.Processors[req.Type]
	if !ok {
		log.Errorf("[IMP][ERR] no processor for type=%q", req.Type)
		return Result{}, errors.New("no processor for type: " + req.Type)
	}

	rc, meta, err := s.Opener.Open(ctx, req.FilePath)
	if err != nil {
		log.Errorf("[IMP][ERR] open: %v", err)
		return Result{}, err
	}
	defer rc.Close()
	s.setStatus(ctx, req.ImportRecordID, journal.StatusRunning, -1)

	format := detectFormat(req.FilePath, meta.ContentType)
	log.Debugf("[IMP] source=%s content_type=%q size=%d detected_format=%s", meta.Source, meta.ContentType, meta.Size, format)

	hasher := sha256.New()
	tee := io.TeeReader(rc, hasher)

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.DefaultBS
	}

	var total int
	var readErr error

	if format == "csv" {
		total, readErr = s.streamCSV(ctx, log, tee, proc, batchSize)
	} else {
		// XLSX needs the whole archive anyway; buffering also lets an
		// unlabelled file fall back to CSV.
		buf, err := io.ReadAll(tee)
		if err != nil {
			return Result{}, fmt.Errorf("read %s: %w", req.FilePath, err)
		}
		total, readErr = s.streamXLSXFirstSheet(ctx, log, bytes.NewReader(buf), proc, batchSize)
		if readErr == nil {
			format = "xlsx"
		} else if format == "" && total == 0 {
			log.Warnf("[IMP][XLSX] %v, trying CSV", readErr)
			total, readErr = s.streamCSV(ctx, log, bytes.NewReader(buf), proc, batchSize)
			if readErr == nil {
				format = "csv"
			}
		}
	}

	if readErr != nil {
		log.Errorf("[IMP][ERR] read pipeline: %v", readErr)
		return Result{}, readErr
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	log.Infof("[IMP][DONE] type=%q fmt=%s rows=%d sha256=%s duration=%s", req.Type, format, total, sum, time.Since(t0))

	return Result{
		Source:        meta.Source,
		FilePath:      req.FilePath,
		Format:        format,
		RowsProcessed: total,
		SHA256:        sum,
		ContentType:   meta.ContentType,
		Bucket:        meta.Bucket,
		Key:           meta.Key,
		SizeBytes:     meta.Size,
	}, nil
}

func (s *Service) streamCSV(ctx context.Context, log *logrus.Entry, r io.Reader, proc ports.Processor, batchSize int) (int, error) {
	start := time.Now()
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	log.Debugf("[IMP][CSV] header=%v", header)

	batch := make([]map[string]string, 0, batchSize)
	total, batches := 0, 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warnf("[IMP][CSV][WARN] read row err: %v", err)
			continue
		}
		batch = append(batch, toMap(header, record))

		if len(batch) >= batchSize {
			if e := proc.ProcessBatch(ctx, batch); e != nil {
				return total, e
			}
			total += len(batch)
			batches++
			batch = make([]map[string]string, 0, batchSize)
		}
	}
	if len(batch) > 0 {
		if e := proc.ProcessBatch(ctx, batch); e != nil {
			return total, e
		}
		total += len(batch)
		batches++
	}
	log.Debugf("[IMP][CSV][DONE] total_rows=%d batches=%d duration=%s", total, batches, time.Since(start))
	return total, nil
}

func (s *Service) streamXLSXFirstSheet(ctx context.Context, log *logrus.Entry, r io.Reader, proc ports.Processor, batchSize int) (int, error) {
	start := time.Now()
	f, err := excelize.OpenReader(r)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, errors.New("xlsx has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, rows.Error()
	}
	header, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	log.Debugf("[IMP][XLSX] sheet=%q header=%v", sheet, header)

	batch := make([]map[string]string, 0, batchSize)
	total, batches := 0, 0

	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			log.Warnf("[IMP][XLSX][WARN] read row err: %v", err)
			continue
		}
		if isBlank(cols) {
			continue
		}
		batch = append(batch, toMap(header, cols))

		if len(batch) >= batchSize {
			if e := proc.ProcessBatch(ctx, batch); e != nil {
				return total, e
			}
			total += len(batch)
			batches++
			batch = make([]map[string]string, 0, batchSize)
		}
	}
	if err := rows.Error(); err != nil {
		return total, err
	}
	if len(batch) > 0 {
		if e := proc.ProcessBatch(ctx, batch); e != nil {
			return total, e
		}
		total += len(batch)
		batches++
	}
	log.Debugf("[IMP][XLSX][DONE] total_rows=%d batches=%d duration=%s", total, batches, time.Since(start))
	return total, nil
}

func toMap(header []string, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, key := range header {
		val := ""
		if i < len(row) {
			val = row[i]
		}
		m[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return m
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func detectFormat(filePath, contentType string) string {
	p := filePath
	if u, err := url.Parse(filePath); err == nil && u != nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	switch ext {
	case "xlsx":
		return "xlsx"
	case "csv":
		return "csv"
	}
	med, _, _ := mime.ParseMediaType(contentType)
	switch med {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case "text/csv", "application/csv", "text/plain":
		return "csv"
	}
	return ""
}

func (s *Service) logger() *logrus.Logger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
