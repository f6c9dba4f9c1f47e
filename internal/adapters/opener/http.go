package opener

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"travesia_payments/internal/ports"

	"github.com/sirupsen/logrus"
)

// HTTPOpener downloads import files published over http(s).
type HTTPOpener struct{ Client *http.Client }

func NewHTTPOpener(cli *http.Client) *HTTPOpener {
	if cli == nil {
		cli = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPOpener{Client: cli}
}

func (h *HTTPOpener) Open(ctx context.Context, url string) (io.ReadCloser, ports.Meta, error) {
	log := logrus.WithField("url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ports.Meta{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		log.Errorf("[OPENER][HTTP][ERR] %v", err)
		return nil, ports.Meta{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		log.Errorf("[OPENER][HTTP][ERR] status=%d", resp.StatusCode)
		return nil, ports.Meta{}, fmt.Errorf("http status %d", resp.StatusCode)
	}

	size := resp.ContentLength
	if size < 0 {
		size = -1
	}
	meta := ports.Meta{
		Source:      "https",
		ContentType: resp.Header.Get("Content-Type"),
		Size:        size,
	}
	log.Debugf("[OPENER][HTTP][OK] content_type=%q size=%d", meta.ContentType, meta.Size)
	return resp.Body, meta, nil
}
