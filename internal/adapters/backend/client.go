package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"travesia_payments/internal/models"
	"travesia_payments/internal/ports"

	"github.com/sirupsen/logrus"
)

const (
	debtorsPath        = "/clients/debtors"
	paymentMethodsPath = "/parameters/payment-methods"
	paymentsPath       = "/payments"
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend %s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the Travesia backend JSON API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Creds   *Credentials
	Log     *logrus.Entry
}

func NewClient(baseURL string, creds *Credentials, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Creds:   creds,
		Log:     logrus.WithField("component", "backend"),
	}
}

var (
	_ ports.DebtorSource     = (*Client)(nil)
	_ ports.MethodCatalog    = (*Client)(nil)
	_ ports.PaymentSubmitter = (*Client)(nil)
)

func (c *Client) ListDebtors(ctx context.Context) ([]models.Debtor, error) {
	var out []models.Debtor
	if err := c.getList(ctx, debtorsPath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type methodDTO struct {
	Code              string `json:"code"`
	Label             string `json:"label"`
	Icon              string `json:"icon"`
	RequiresReference bool   `json:"requires_reference"`
}

func (c *Client) ListPaymentMethods(ctx context.Context) (models.PaymentMethods, error) {
	var raw []methodDTO
	if err := c.getList(ctx, paymentMethodsPath, &raw); err != nil {
		return nil, err
	}
	out := make(models.PaymentMethods, 0, len(raw))
	for _, m := range raw {
		icon, err := models.ParseIconKey(m.Icon)
		if err != nil {
			c.Log.Warnf("[BACKEND][METHODS] code=%s: %v, using default icon", m.Code, err)
			icon = models.IconDefault
		}
		out = append(out, models.PaymentMethod{
			Code:              m.Code,
			Label:             m.Label,
			Icon:              icon,
			RequiresReference: m.RequiresReference,
		})
	}
	return out, nil
}

// SubmitPayment posts the submission once. The payment id travels as the
// Idempotency-Key header so a replay answers 409.
func (c *Client) SubmitPayment(ctx context.Context, sub models.Submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, paymentsPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sub.PaymentID != "" {
		req.Header.Set("Idempotency-Key", sub.PaymentID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("backend POST %s: %w", paymentsPath, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return c.unauthorized(http.MethodPost, paymentsPath, resp)
	case resp.StatusCode == http.StatusConflict:
		return ports.ErrAlreadySubmitted
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return errors.Join(ports.ErrBalanceChanged, statusError(http.MethodPost, paymentsPath, resp))
	default:
		return statusError(http.MethodPost, paymentsPath, resp)
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Creds != nil {
		if tok, err := c.Creds.Token(); err == nil {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}

// getList decodes either a bare JSON array or a {"data": [...]} envelope.
func (c *Client) getList(ctx context.Context, path string, dst any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	t0 := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("backend GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return c.unauthorized(http.MethodGet, path, resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(http.MethodGet, path, resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		raw = env.Data
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	c.Log.Debugf("[BACKEND][GET] path=%s duration=%s", path, time.Since(t0))
	return nil
}

// unauthorized drops the rejected token from memory and disk.
func (c *Client) unauthorized(method, path string, resp *http.Response) error {
	serr := statusError(method, path, resp)
	if c.Creds != nil {
		if err := c.Creds.Clear(); err != nil {
			c.Log.Errorf("[BACKEND][AUTH][ERR] clear token: %v", err)
		}
	}
	c.Log.Warnf("[BACKEND][AUTH] %s %s rejected the token, credentials cleared", method, path)
	return errors.Join(ports.ErrUnauthorized, serr)
}

func statusError(method, path string, resp *http.Response) *StatusError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{
		Method: method,
		Path:   path,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(b)),
	}
}
