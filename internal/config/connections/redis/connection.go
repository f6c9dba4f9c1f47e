package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type ConnectionInfo struct {
	Addr     string
	Password string
	DB       int

	PingTimeout time.Duration
}

type Redis struct {
	Client *goredis.Client
}

func NewConnection(ctx context.Context, info ConnectionInfo) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     info.Addr,
		Password: info.Password,
		DB:       info.DB,
	})

	timeout := info.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"addr": info.Addr, "db": info.DB}).Info("[CFG][REDIS] connected")
	return &Redis{Client: client}, nil
}

func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}
