package email

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"

	"travesia_payments/internal/config"
	"travesia_payments/internal/models"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    config.SMTP
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewSender(cfg config.SMTP, logger *logrus.Logger) *Sender {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendReceipt mails the payment receipt with the workbook attached.
func (s *Sender) SendReceipt(to []string, r models.Receipt, filename string, workbook []byte) error {
	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = to
	e.Subject = fmt.Sprintf("Payment receipt %s", r.PaymentID)

	var body strings.Builder
	fmt.Fprintf(&body, "Payment %s was registered on %s.\n\n", r.PaymentID, r.SubmittedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&body, "Total: %s\nMethod: %s\n", r.TotalAmount.StringFixed(2), r.PaymentMethodCode)
	if r.BankReference != nil {
		fmt.Fprintf(&body, "Reference: %s\n", *r.BankReference)
	}
	body.WriteString("\nApplied to:\n")
	for _, l := range r.Lines {
		fmt.Fprintf(&body, "  %s (%s) - %s: %s\n", l.DebtorName, l.IdentityCard, l.PackageName, l.AmountToApply.StringFixed(2))
	}
	body.WriteString("\nTravesia")
	e.Text = []byte(body.String())

	if len(workbook) > 0 {
		if _, err := e.Attach(bytes.NewReader(workbook), filename, xlsxContentType); err != nil {
			return fmt.Errorf("attach receipt: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send receipt %s to %v: %v", r.PaymentID, to, err)
		return fmt.Errorf("failed to send receipt: %w", err)
	}

	s.logger.Infof("Receipt %s sent to %v", r.PaymentID, to)
	return nil
}
