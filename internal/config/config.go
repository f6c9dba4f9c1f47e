package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"travesia_payments/internal/config/connections/mongo"
	"travesia_payments/internal/config/connections/postgres"
	"travesia_payments/internal/config/connections/redis"
	"travesia_payments/internal/config/connections/s3"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	AuthToken = "token"
	AuthJWT   = "jwt"
)

type SMTP struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

func (s SMTP) Enabled() bool { return s.Host != "" && s.From != "" }

type Config struct {
	Port     string
	LogLevel string

	BackendMode      string
	BackendURL       string
	BackendToken     string
	BackendTokenFile string
	BackendTimeout   time.Duration

	SessionStore string
	SessionTTL   time.Duration
	SweepSpec    string

	AuthMode  string
	JWTSecret string

	SMTP          SMTP
	ReceiptMailTo []string

	S3       *s3.S3
	Mongo    *mongo.Mongo
	Postgres *postgres.Postgres
	Redis    *redis.Redis
}

// Load reads the environment without opening any connection.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getenv("SERVER_PORT", "8070"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		BackendMode:      strings.ToLower(getenv("BACKEND_MODE", BackendPostgres)),
		BackendURL:       getenv("BACKEND_URL", "http://localhost:8000/api"),
		BackendToken:     getenv("BACKEND_TOKEN", ""),
		BackendTokenFile: getenv("BACKEND_TOKEN_FILE", ".travesia_token"),
		BackendTimeout:   getduration("BACKEND_TIMEOUT", 15*time.Second),

		SessionStore: strings.ToLower(getenv("SESSION_STORE", SessionStoreMemory)),
		SessionTTL:   getduration("SESSION_TTL", 30*time.Minute),
		SweepSpec:    getenv("SESSION_SWEEP_SPEC", "@every 1m"),

		AuthMode:  strings.ToLower(getenv("AUTH_MODE", AuthToken)),
		JWTSecret: getenv("JWT_SECRET", ""),

		SMTP: SMTP{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getenv("SMTP_PORT", "587"),
			User:     getenv("SMTP_USER", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", ""),
		},
		ReceiptMailTo: splitList(getenv("RECEIPT_MAIL_TO", "")),
	}
}

func Init(ctx context.Context) *Config {
	cfg := Load()

	s3c, err := s3.NewConnection(s3.ConnectionInfo{
		Endpoint:  getenv("AWS_ENDPOINT", "localhost:9000"),
		AccessKey: getenv("AWS_ACCESS_KEY_ID", "minioadmin"),
		SecretKey: getenv("AWS_SECRET_ACCESS_KEY", "minioadmin"),
		Region:    getenv("AWS_DEFAULT_REGION", "us-east-1"),
		Bucket:    getenv("AWS_BUCKET", "travesia"),
		UseSSL:    getenv("AWS_USE_SSL", "false") == "true",
	})
	if err != nil {
		logrus.Fatalf("[CFG][S3][ERR] connect: %v", err)
	}
	if getenv("AWS_ENSURE_BUCKET", "false") == "true" {
		if err := s3c.EnsureBucket(ctx); err != nil {
			logrus.Warnf("[CFG][S3] ensure bucket %q: %v", s3c.Bucket, err)
		}
	}

	mg, err := mongo.NewConnection(ctx, mongo.ConnectionInfo{
		Scheme:     getenv("MONGO_SCHEME", "mongodb"),
		User:       getenv("MONGO_USER", "root"),
		Password:   getenv("MONGO_PASSWORD", "secret"),
		Host:       getenv("MONGO_HOST", "127.0.0.1"),
		Port:       getenv("MONGO_PORT", "27017"),
		DB:         getenv("MONGO_DB", "travesia_journal"),
		AuthSource: getenv("MONGO_AUTH_SOURCE", "admin"),

		AppName:     "travesia-payments",
		PingTimeout: getduration("MONGO_PING_TIMEOUT", 5*time.Second),
	})
	if err != nil {
		logrus.Fatalf("[CFG][MONGO][ERR] connect: %v", err)
	}

	pg, err := postgres.NewConnection(ctx, postgres.ConnectionInfo{
		Host:     getenv("PG_HOST", "127.0.0.1"),
		Port:     getenv("PG_PORT", "5432"),
		User:     getenv("PG_USER", "root"),
		Password: getenv("PG_PASSWORD", "hello-world"),
		DB:       getenv("PG_DB", "travesia"),
		SSLMode:  getenv("PG_SSLMODE", "disable"),

		MaxConns:        getint32("PG_MAX_CONNS", 10),
		MinConns:        getint32("PG_MIN_CONNS", 0),
		MaxConnIdleTime: getduration("PG_MAX_CONN_IDLE", 5*time.Minute),
	})
	if err != nil {
		logrus.Fatalf("[CFG][PG][ERR] connect: %v", err)
	}

	if cfg.SessionStore == SessionStoreRedis {
		db, _ := strconv.Atoi(getenv("REDIS_DB", "0"))
		rd, err := redis.NewConnection(ctx, redis.ConnectionInfo{
			Addr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       db,

			PingTimeout: getduration("REDIS_PING_TIMEOUT", 5*time.Second),
		})
		if err != nil {
			logrus.Fatalf("[CFG][REDIS][ERR] connect: %v", err)
		}
		cfg.Redis = rd
	}

	cfg.S3 = s3c
	cfg.Mongo = mg
	cfg.Postgres = pg
	return cfg
}

func (c *Config) CheckConnections(ctx context.Context) error {
	var errs []error

	if c.Postgres == nil || c.Postgres.Pool == nil {
		errs = append(errs, errors.New("postgres not initialized"))
	} else if err := c.Postgres.Pool.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("postgres ping failed: %w", err))
	}

	if c.Mongo == nil || c.Mongo.Client == nil {
		errs = append(errs, errors.New("mongo not initialized"))
	} else if err := c.Mongo.Client.Ping(ctx, nil); err != nil {
		errs = append(errs, fmt.Errorf("mongo ping failed: %w", err))
	}

	if c.S3 == nil || c.S3.Client == nil {
		errs = append(errs, errors.New("s3 not initialized"))
	} else if ok, err := c.S3.Client.BucketExists(ctx, c.S3.Bucket); err != nil {
		errs = append(errs, fmt.Errorf("s3 bucket check failed: %w", err))
	} else if !ok {
		errs = append(errs, fmt.Errorf("s3 bucket %q not found", c.S3.Bucket))
	}

	if c.SessionStore == SessionStoreRedis {
		if c.Redis == nil || c.Redis.Client == nil {
			errs = append(errs, errors.New("redis not initialized"))
		} else if err := c.Redis.Client.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis ping failed: %w", err))
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.Join(errs...)
}

func (c *Config) Close(ctx context.Context) {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Mongo != nil {
		_ = c.Mongo.Close(ctx)
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logrus.Warnf("[CFG] invalid %s=%q, using %s", k, v, def)
		return def
	}
	return d
}

func getint32(k string, def int32) int32 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		logrus.Warnf("[CFG] invalid %s=%q, using %d", k, v, def)
		return def
	}
	return int32(n)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
