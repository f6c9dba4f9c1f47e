package opener

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"

	"travesia_payments/internal/ports"
)

var ErrNotConfigured = errors.New("opener not configured")

// CompoundOpener routes a file path to the http or s3 opener. A bare key is
// looked up in DefaultBucket.
type CompoundOpener struct {
	HTTP ports.FileOpener
	S3   interface {
		Open(ctx context.Context, bucket, key string) (io.ReadCloser, ports.Meta, error)
	}

	DefaultBucket string
}

func NewCompoundOpener(httpOp *HTTPOpener, s3Op *S3Opener, defaultBucket string) *CompoundOpener {
	c := &CompoundOpener{DefaultBucket: defaultBucket}
	if httpOp != nil {
		c.HTTP = httpOp
	}
	if s3Op != nil {
		c.S3 = s3Op
	}
	return c
}

func (c *CompoundOpener) Open(ctx context.Context, filePath string) (io.ReadCloser, ports.Meta, error) {
	fp := strings.TrimSpace(filePath)

	switch {
	case strings.HasPrefix(fp, "http://") || strings.HasPrefix(fp, "https://"):
		if c.HTTP == nil {
			return nil, ports.Meta{}, errors.Join(ErrNotConfigured, errors.New("http"))
		}
		return c.HTTP.Open(ctx, fp)

	case strings.HasPrefix(fp, "s3://"):
		if c.S3 == nil {
			return nil, ports.Meta{}, errors.Join(ErrNotConfigured, errors.New("s3"))
		}
		bkt, key, err := parseS3URL(fp)
		if err != nil {
			return nil, ports.Meta{}, err
		}
		return c.S3.Open(ctx, bkt, key)

	default:
		if c.S3 == nil || c.DefaultBucket == "" {
			return nil, ports.Meta{}, errors.New("missing bucket: pass s3://bucket/key or https url")
		}
		return c.S3.Open(ctx, c.DefaultBucket, strings.TrimPrefix(fp, "/"))
	}
}

func parseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", errors.New("scheme must be s3")
	}
	bucket = u.Host
	key = path.Clean(strings.TrimPrefix(u.Path, "/"))
	if bucket == "" || key == "" || key == "." || key == "/" {
		return "", "", errors.New("empty bucket or key")
	}
	return bucket, key, nil
}
