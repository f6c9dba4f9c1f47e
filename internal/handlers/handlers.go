package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"travesia_payments/internal/config/connections/mongo"
	"travesia_payments/internal/config/connections/s3"
	"travesia_payments/internal/services/importer"
	"travesia_payments/internal/services/payments"

	"github.com/sirupsen/logrus"
)

type HealthChecker interface {
	CheckConnections(ctx context.Context) error
}

type Handlers struct {
	Payments *payments.Service
	Importer *importer.Service
	Health   HealthChecker

	Mongo *mongo.Mongo
	S3    *s3.S3

	Logger *logrus.Logger
}

func New(svc *payments.Service, imp *importer.Service, health HealthChecker, mg *mongo.Mongo, s3c *s3.S3, log *logrus.Logger) *Handlers {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handlers{
		Payments: svc,
		Importer: imp,
		Health:   health,
		Mongo:    mg,
		S3:       s3c,
		Logger:   log,
	}
}

func (h *Handlers) JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
