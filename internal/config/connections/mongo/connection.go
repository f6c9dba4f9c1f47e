package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultPingTimeout = 5 * time.Second

type ConnectionInfo struct {
	Scheme     string
	User       string
	Password   string
	Host       string
	Port       string
	DB         string
	AuthSource string

	AppName     string
	PingTimeout time.Duration
}

// Mongo backs the payment journal: session events and import records.
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// URI builds the connection string. The password is never logged; use
// Redacted for that.
func (i ConnectionInfo) URI() string {
	return i.uri(i.Password)
}

func (i ConnectionInfo) Redacted() string {
	if i.Password == "" {
		return i.uri("")
	}
	return i.uri("xxxxx")
}

func (i ConnectionInfo) uri(password string) string {
	scheme := i.Scheme
	if scheme == "" {
		scheme = "mongodb"
	}

	auth := ""
	if i.User != "" {
		auth = i.User
		if password != "" {
			auth += ":" + password
		}
		auth += "@"
	}

	host := i.Host
	if i.Port != "" && scheme != "mongodb+srv" {
		host += ":" + i.Port
	}

	query := ""
	if i.AuthSource != "" {
		query = "?authSource=" + i.AuthSource
	}

	return fmt.Sprintf("%s://%s%s/%s%s", scheme, auth, host, i.DB, query)
}

func NewConnection(ctx context.Context, info ConnectionInfo) (*Mongo, error) {
	opts := options.Client().ApplyURI(info.URI())
	if info.AppName != "" {
		opts.SetAppName(info.AppName)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	timeout := info.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping %s: %w", info.Redacted(), err)
	}

	logrus.WithFields(logrus.Fields{
		"uri": info.Redacted(),
		"db":  info.DB,
	}).Info("[CFG][MONGO] connected")

	return &Mongo{Client: client, Database: client.Database(info.DB)}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.Client != nil {
		return m.Client.Disconnect(ctx)
	}
	return nil
}
