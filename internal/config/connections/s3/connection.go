package s3

import (
	"context"
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

type ConnectionInfo struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// S3 holds the bucket used for import uploads and payment receipts.
type S3 struct {
	Client *minio.Client
	Bucket string
}

// endpoint strips an http(s) scheme from raw. An explicit scheme wins over useSSL.
func endpoint(raw string, useSSL bool) (string, bool) {
	host := strings.TrimRight(strings.TrimSpace(raw), "/")
	switch {
	case strings.HasPrefix(host, "https://"):
		return strings.TrimPrefix(host, "https://"), true
	case strings.HasPrefix(host, "http://"):
		return strings.TrimPrefix(host, "http://"), false
	}
	return host, useSSL
}

func NewConnection(info ConnectionInfo) (*S3, error) {
	host, secure := endpoint(info.Endpoint, info.UseSSL)
	if host == "" {
		return nil, errors.New("s3 endpoint is empty")
	}
	if info.Bucket == "" {
		return nil, errors.New("s3 bucket is empty")
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(info.AccessKey, info.SecretKey, ""),
		Secure: secure,
		Region: info.Region,
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"endpoint": host,
		"bucket":   info.Bucket,
		"ssl":      secure,
	}).Info("[CFG][S3] client ready")

	return &S3{Client: client, Bucket: info.Bucket}, nil
}

func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.Client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{}); err != nil {
		return err
	}
	logrus.Infof("[CFG][S3] bucket %q created", s.Bucket)
	return nil
}
