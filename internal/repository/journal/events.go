package journal

import (
	"context"
	"encoding/json"
	"time"

	mg "travesia_payments/internal/config/connections/mongo"
	"travesia_payments/internal/ports"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SessionEventsCollection = "payment_session_events"

type SessionEvent struct {
	SessionID string    `bson:"session_id" json:"session_id"`
	UserID    string    `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Event     string    `bson:"event" json:"event"`
	Status    string    `bson:"status" json:"status"`
	Errors    string    `bson:"errors,omitempty" json:"errors,omitempty"`
	Payload   string    `bson:"payload,omitempty" json:"payload,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// EventLog records payment session events in Mongo.
type EventLog struct {
	MG  *mg.Mongo
	Log *logrus.Logger
}

func NewEventLog(m *mg.Mongo, log *logrus.Logger) *EventLog {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &EventLog{MG: m, Log: log}
}

func (l *EventLog) Record(ctx context.Context, ev ports.SessionEvent) {
	if l == nil || l.MG == nil || l.MG.Database == nil {
		return
	}

	doc := SessionEvent{
		SessionID: ev.SessionID,
		UserID:    ev.UserID,
		Event:     ev.Event,
		Status:    ev.Status,
		Errors:    ev.Errors,
		CreatedAt: time.Now().UTC(),
	}
	if ev.Payload != nil {
		if b, err := json.Marshal(ev.Payload); err == nil {
			doc.Payload = string(b)
		}
	}

	if _, err := l.MG.Database.Collection(SessionEventsCollection).InsertOne(ctx, doc); err != nil {
		l.Log.WithFields(logrus.Fields{
			"session_id": ev.SessionID,
			"event":      ev.Event,
		}).Errorf("[JOURNAL][SESSION][MONGO][ERR] %v", err)
	}
}

func ListSessionEvents(ctx context.Context, m *mg.Mongo, sessionID string, limit int64) ([]SessionEvent, error) {
	if m == nil || m.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := m.Database.Collection(SessionEventsCollection).Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]SessionEvent, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
