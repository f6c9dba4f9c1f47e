package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"travesia_payments/internal/metrics"
	"travesia_payments/internal/models"
	"travesia_payments/internal/ports"
	"travesia_payments/internal/services/allocation"
	"travesia_payments/internal/services/sessions"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrBackendSubmit wraps a rejected or failed backend submission. The session
// is back in distributing state with every row kept.
var ErrBackendSubmit = errors.New("payment submission failed")

type Deps struct {
	Store     sessions.Store
	Debtors   ports.DebtorSource
	Methods   ports.MethodCatalog
	Submitter ports.PaymentSubmitter
	Events    ports.EventLog
	Receipts  ports.ReceiptPublisher
	Log       *logrus.Logger

	// SubmitTimeout bounds one backend submission. A session left in
	// submitting for longer is recovered on the next Submit or Cancel.
	SubmitTimeout time.Duration
}

// Service runs payment registration wizards on behalf of console users.
type Service struct {
	store     sessions.Store
	debtors   ports.DebtorSource
	methods   ports.MethodCatalog
	submitter ports.PaymentSubmitter
	events    ports.EventLog
	receipts  ports.ReceiptPublisher
	log       *logrus.Logger

	submitTimeout time.Duration
	background    sync.WaitGroup

	now   func() time.Time
	newID func() string
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:     d.Store,
		debtors:   d.Debtors,
		methods:   d.Methods,
		submitter: d.Submitter,
		events:    d.Events,
		receipts:  d.Receipts,
		log:       log,

		submitTimeout: d.SubmitTimeout,

		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// View is what the console renders for a session.
type View struct {
	ID        string                 `json:"id"`
	State     allocation.State       `json:"state"`
	Header    *models.PaymentHeader  `json:"header,omitempty"`
	Rows      []models.AllocationRow `json:"rows"`
	Summary   allocation.Summary     `json:"summary"`
	LastError string                 `json:"last_error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func NewView(s *allocation.Session) View {
	rows := s.Engine.Rows
	if rows == nil {
		rows = []models.AllocationRow{}
	}
	return View{
		ID:        s.ID,
		State:     s.State,
		Header:    s.Engine.Header,
		Rows:      rows,
		Summary:   s.Engine.Summary(),
		LastError: s.LastError,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// Wait blocks until background receipt publishing has finished.
func (s *Service) Wait() {
	s.background.Wait()
}

type Result struct {
	PaymentID string         `json:"payment_id"`
	Replayed  bool           `json:"replayed"`
	Receipt   models.Receipt `json:"receipt"`
}

func (s *Service) PaymentMethods(ctx context.Context) (models.PaymentMethods, error) {
	return s.methods.ListPaymentMethods(ctx)
}

// Open fetches the debtor list once and starts a fresh session.
func (s *Service) Open(ctx context.Context, userID string) (View, error) {
	debtors, err := s.debtors.ListDebtors(ctx)
	if err != nil {
		s.log.Errorf("[PAY][OPEN][ERR] list debtors: %v", err)
		return View{}, fmt.Errorf("load debtors: %w", err)
	}

	sess := allocation.NewSession(s.newID(), debtors, s.now())
	sess.CreatedBy = userID
	if err := s.store.Create(ctx, sess); err != nil {
		return View{}, err
	}

	metrics.SessionsOpened.Inc()
	s.log.WithFields(logrus.Fields{"session_id": sess.ID, "user_id": userID}).
		Infof("[PAY][OPEN] debtors=%d", len(debtors))
	s.record(ctx, sess.ID, userID, "open", nil, map[string]int{"debtors": len(debtors)})
	return NewView(sess), nil
}

func (s *Service) Get(ctx context.Context, id, userID string) (View, error) {
	sess, err := s.load(ctx, id, userID)
	if err != nil {
		return View{}, err
	}
	return NewView(sess), nil
}

func (s *Service) Candidates(ctx context.Context, id, userID string) ([]models.Debtor, error) {
	sess, err := s.load(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.Candidates(), nil
}

// Validate reports whether the session could be submitted right now.
func (s *Service) Validate(ctx context.Context, id, userID string) (allocation.Summary, error) {
	sess, err := s.load(ctx, id, userID)
	if err != nil {
		return allocation.Summary{}, err
	}
	_, err = sess.Engine.Validate()
	return sess.Engine.Summary(), err
}

func (s *Service) SetHeader(ctx context.Context, id, userID string, in allocation.HeaderInput) (View, error) {
	methods, err := s.methods.ListPaymentMethods(ctx)
	if err != nil {
		return View{}, fmt.Errorf("load payment methods: %w", err)
	}
	return s.mutate(ctx, id, userID, "set_header", in, func(sess *allocation.Session) error {
		_, err := sess.SetHeader(in, methods)
		return err
	})
}

func (s *Service) Back(ctx context.Context, id, userID string) (View, error) {
	return s.mutate(ctx, id, userID, "back", nil, func(sess *allocation.Session) error {
		return sess.Back()
	})
}

func (s *Service) AddDebtor(ctx context.Context, id, userID, debtorID string) (View, error) {
	return s.mutate(ctx, id, userID, "add_debtor", map[string]string{"debtor_id": debtorID}, func(sess *allocation.Session) error {
		_, err := sess.AddDebtor(debtorID)
		return err
	})
}

func (s *Service) RemoveRow(ctx context.Context, id, userID string, index int) (View, error) {
	return s.mutate(ctx, id, userID, "remove_row", map[string]int{"index": index}, func(sess *allocation.Session) error {
		return sess.RemoveRow(index)
	})
}

func (s *Service) SetRowAmount(ctx context.Context, id, userID string, index int, amount decimal.Decimal) (View, error) {
	payload := map[string]any{"index": index, "amount": amount.String()}
	return s.mutate(ctx, id, userID, "set_row_amount", payload, func(sess *allocation.Session) error {
		_, err := sess.SetRowAmount(index, amount)
		return err
	})
}

func (s *Service) ChangeRowDebt(ctx context.Context, id, userID string, index int, debtID string) (View, error) {
	payload := map[string]any{"index": index, "debt_id": debtID}
	return s.mutate(ctx, id, userID, "change_row_debt", payload, func(sess *allocation.Session) error {
		_, err := sess.ChangeRowDebt(index, debtID)
		return err
	})
}

// UpdateRow applies a debt change and an amount to one row in a single store
// update, so either both land or neither does. The debt change resets the
// amount and therefore runs first.
func (s *Service) UpdateRow(ctx context.Context, id, userID string, index int, debtID *string, amount *decimal.Decimal) (View, error) {
	payload := map[string]any{"index": index}
	if debtID != nil {
		payload["debt_id"] = *debtID
	}
	if amount != nil {
		payload["amount"] = amount.String()
	}
	return s.mutate(ctx, id, userID, "update_row", payload, func(sess *allocation.Session) error {
		if debtID != nil {
			if _, err := sess.ChangeRowDebt(index, *debtID); err != nil {
				return err
			}
		}
		if amount != nil {
			if _, err := sess.SetRowAmount(index, *amount); err != nil {
				return err
			}
		}
		return nil
	})
}

// Cancel discards the session. Opening again starts from scratch.
func (s *Service) Cancel(ctx context.Context, id, userID string) error {
	if _, err := s.store.Update(ctx, id, func(sess *allocation.Session) error {
		if !owns(sess, userID) {
			return sessions.ErrNotFound
		}
		s.recoverStale(sess)
		return sess.Cancel()
	}); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, sessions.ErrNotFound) {
		return err
	}
	s.log.WithField("session_id", id).Info("[PAY][CANCEL]")
	s.record(ctx, id, userID, "cancel", nil, nil)
	return nil
}

// Submit sends the balanced distribution to the backend exactly once. The
// session id doubles as the payment id, so a replay the backend already
// accepted counts as success.
func (s *Service) Submit(ctx context.Context, id, userID string) (Result, error) {
	log := s.log.WithFields(logrus.Fields{"session_id": id, "user_id": userID})

	var (
		dist    allocation.Distribution
		attempt int
	)
	sess, err := s.store.Update(ctx, id, func(sess *allocation.Session) error {
		if !owns(sess, userID) {
			return sessions.ErrNotFound
		}
		s.recoverStale(sess)
		d, err := sess.BeginSubmit(s.now())
		if err != nil {
			return err
		}
		dist, attempt = d, sess.SubmitAttempt
		return nil
	})
	if err != nil {
		log.Warnf("[PAY][SUBMIT][REJECT] %v", err)
		s.record(ctx, id, userID, "submit", err, nil)
		return Result{}, err
	}

	sub := dist.Submission(id)
	sub.SubmittedBy = userID

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.submitTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, s.submitTimeout)
	}
	timer := time.Now()
	err = s.submitter.SubmitPayment(callCtx, sub)
	cancel()
	metrics.SubmitLatency.Observe(time.Since(timer).Seconds())

	replayed := errors.Is(err, ports.ErrAlreadySubmitted)
	if err != nil && !replayed {
		outcome := "failed"
		if errors.Is(err, ports.ErrBalanceChanged) {
			outcome = "rejected"
		}
		metrics.Submissions.WithLabelValues(outcome).Inc()
		log.Errorf("[PAY][SUBMIT][ERR] %v", err)

		if _, ferr := s.store.Update(context.WithoutCancel(ctx), id, func(sess *allocation.Session) error {
			if sess.SubmitAttempt != attempt {
				return fmt.Errorf("attempt %d superseded by %d", attempt, sess.SubmitAttempt)
			}
			return sess.FailSubmit(err)
		}); ferr != nil {
			log.Errorf("[PAY][SUBMIT][ERR] revert session: %v", ferr)
		}
		s.record(ctx, id, userID, "submit", err, sub)
		return Result{}, fmt.Errorf("%w: %w", ErrBackendSubmit, err)
	}

	if replayed {
		metrics.Submissions.WithLabelValues("replayed").Inc()
		log.Warn("[PAY][SUBMIT] payment already accepted by backend")
	} else {
		metrics.Submissions.WithLabelValues("ok").Inc()
	}

	done := context.WithoutCancel(ctx)
	if _, err := s.store.Update(done, id, func(sess *allocation.Session) error {
		return sess.CompleteSubmit()
	}); err != nil {
		log.Warnf("[PAY][SUBMIT] complete session: %v", err)
	}
	if err := s.store.Delete(done, id); err != nil && !errors.Is(err, sessions.ErrNotFound) {
		log.Warnf("[PAY][SUBMIT] delete session: %v", err)
	}

	receipt := buildReceipt(sess, dist, userID, s.now())
	if s.receipts != nil {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			if err := s.receipts.Publish(done, receipt); err != nil {
				log.Errorf("[PAY][RECEIPT][ERR] %v", err)
			}
		}()
	}

	log.Infof("[PAY][SUBMIT][DONE] total=%s applications=%d replayed=%t",
		sub.TotalAmount.StringFixed(2), len(sub.Applications), replayed)
	s.record(done, id, userID, "submitted", nil, sub)

	return Result{PaymentID: id, Replayed: replayed, Receipt: receipt}, nil
}

func (s *Service) recoverStale(sess *allocation.Session) {
	started := sess.SubmitStartedAt
	if sess.RecoverStaleSubmit(s.now(), s.submitTimeout) {
		s.log.WithFields(logrus.Fields{
			"session_id": sess.ID,
			"attempt":    sess.SubmitAttempt,
			"started_at": started,
		}).Warn("[PAY][SUBMIT][RECOVER] stale submission reverted")
	}
}

func (s *Service) load(ctx context.Context, id, userID string) (*allocation.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !owns(sess, userID) {
		return nil, sessions.ErrNotFound
	}
	return sess, nil
}

func (s *Service) mutate(ctx context.Context, id, userID, event string, payload any, fn func(*allocation.Session) error) (View, error) {
	sess, err := s.store.Update(ctx, id, func(sess *allocation.Session) error {
		if !owns(sess, userID) {
			return sessions.ErrNotFound
		}
		return fn(sess)
	})
	s.record(ctx, id, userID, event, err, payload)
	if err != nil {
		s.log.WithFields(logrus.Fields{"session_id": id, "event": event}).Debugf("[PAY][%s] %v", event, err)
		return View{}, err
	}
	return NewView(sess), nil
}

func (s *Service) record(ctx context.Context, id, userID, event string, err error, payload any) {
	if s.events == nil {
		return
	}
	ev := ports.SessionEvent{
		SessionID: id,
		UserID:    userID,
		Event:     event,
		Status:    "ok",
		Payload:   payload,
	}
	if err != nil {
		ev.Status = "error"
		ev.Errors = err.Error()
	}
	s.events.Record(ctx, ev)
}

// owns treats sessions created without a user as shared.
func owns(sess *allocation.Session, userID string) bool {
	return sess.CreatedBy == "" || sess.CreatedBy == userID
}

func buildReceipt(sess *allocation.Session, dist allocation.Distribution, userID string, at time.Time) models.Receipt {
	cards := make(map[string]string, len(sess.Engine.Debtors))
	for _, d := range sess.Engine.Debtors {
		cards[d.ID] = d.IdentityCard
	}

	r := models.Receipt{
		PaymentID:         sess.ID,
		SubmittedAt:       at,
		SubmittedBy:       userID,
		TotalAmount:       dist.Header.TotalAmount,
		PaymentMethodCode: dist.Header.PaymentMethodCode,
		BankReference:     dist.Header.BankReference,
	}
	for _, row := range dist.Rows {
		if row.AmountToApply.IsZero() {
			continue
		}
		r.Lines = append(r.Lines, models.ReceiptLine{
			DebtorName:    row.DebtorName,
			IdentityCard:  cards[row.DebtorID],
			PackageName:   row.Debt.PackageName,
			DebtID:        row.Debt.ID,
			AmountToApply: row.AmountToApply,
		})
	}
	return r
}
