package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ConnectionInfo describes the shared pool. Sessions, repositories and token
// lookups all draw from it, so MaxConns bounds the whole service.
type ConnectionInfo struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

type Postgres struct {
	Pool *pgxpool.Pool
}

func (i ConnectionInfo) DSN() string {
	sslmode := i.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		i.Host, i.Port, i.User, i.Password, i.DB, sslmode,
	)
}

// PoolConfig applies the pool limits on top of the DSN. Zero values keep the
// pgxpool defaults.
func (i ConnectionInfo) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(i.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if i.MaxConns > 0 {
		pc.MaxConns = i.MaxConns
	}
	if i.MinConns > 0 {
		pc.MinConns = min(i.MinConns, pc.MaxConns)
	}
	if i.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = i.MaxConnIdleTime
	}
	return pc, nil
}

func NewConnection(ctx context.Context, info ConnectionInfo) (*Postgres, error) {
	pc, err := info.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"host":      info.Host,
		"db":        info.DB,
		"max_conns": pc.MaxConns,
		"min_conns": pc.MinConns,
	}).Info("[CFG][PG] connected")

	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
