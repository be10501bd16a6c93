// Package payments fetches and observes the gateway's payment records:
// one-shot loads, a 5-second auto-refresh poller and cancellation of
// cancellable payments. Successful fetches are mirrored into the local
// history cache.
package payments

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/api"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/history"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/models"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/stream"
)

// ErrReasonRequired rejects a cancellation without a free-text reason.
var ErrReasonRequired = errors.New("a cancellation reason is required")

// RejectionError is a domain-level cancellation rejection (responseCode or
// HTTP status 400/409). Message is ready for display.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string { return e.Message }

// Service owns the payment list stream and the polling schedule.
type Service struct {
	client  *api.Client
	history *history.Store // may be nil

	// Interval between automatic refreshes.
	Interval time.Duration

	records *stream.Value[[]models.PaymentRecord]

	mu       sync.Mutex
	stopPoll context.CancelFunc
	done     chan struct{}
}

func New(client *api.Client, historyStore *history.Store) *Service {
	return &Service{
		client:   client,
		history:  historyStore,
		Interval: 5 * time.Second,
		records:  stream.New[[]models.PaymentRecord](nil),
	}
}

// Records exposes the payment list stream: current value on subscribe, then
// every refresh.
func (s *Service) Records() *stream.Value[[]models.PaymentRecord] {
	return s.records
}

// List fetches the payment list, publishes it and mirrors it into the
// history cache.
func (s *Service) List(ctx context.Context) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	if err := s.client.Do(ctx, http.MethodGet, "/payment/list", nil, &records); err != nil {
		return nil, err
	}

	s.records.Set(records)
	if s.history != nil {
		if err := s.history.Upsert(records); err != nil {
			slog.Error("Failed to cache payment records", "error", err)
		}
	}
	return records, nil
}

// Cached returns the last-known records from the history cache, for when the
// gateway is unreachable.
func (s *Service) Cached() ([]models.PaymentRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List()
}

// Find returns the record with the given reference, looking at the last
// fetched list first and the history cache second.
func (s *Service) Find(reference string) (models.PaymentRecord, bool) {
	if reference == "" {
		return models.PaymentRecord{}, false
	}
	for _, r := range s.records.Get() {
		if r.Reference == reference {
			return r, true
		}
	}
	cached, err := s.Cached()
	if err != nil {
		slog.Error("Failed to read cached payment records", "error", err)
		return models.PaymentRecord{}, false
	}
	for _, r := range cached {
		if r.Reference == reference {
			return r, true
		}
	}
	return models.PaymentRecord{}, false
}

// StartAutoRefresh fetches immediately, then every Interval until
// StopAutoRefresh. Starting while already running cancels the previous
// schedule first, so there is never more than one active poller.
func (s *Service) StartAutoRefresh() {
	s.StopAutoRefresh()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.stopPoll = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		s.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.poll(ctx)
			}
		}
	}()
	slog.Debug("Payment auto-refresh started", "interval", s.Interval)
}

// StopAutoRefresh fully stops the polling schedule; no further fetches happen
// after it returns. Safe to call when not running.
func (s *Service) StopAutoRefresh() {
	s.mu.Lock()
	cancel, done := s.stopPoll, s.done
	s.stopPoll, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
		slog.Debug("Payment auto-refresh stopped")
	}
}

func (s *Service) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := s.List(fetchCtx); err != nil {
		slog.Error("Payment auto-refresh fetch failed", "error", err)
	}
}

// CanCancel reports whether a payment is cancellable: only created ("01")
// and paid ("02") payments are.
func CanCancel(record models.PaymentRecord) bool {
	return record.Status == models.PaymentStatusCreated || record.Status == models.PaymentStatusPaid
}

// Cancel submits a cancellation with the given reason. A 202 outcome reloads
// the list; 400/409 outcomes surface as RejectionError (with a friendlier
// message when the payment was already cancelled); anything else is a
// generic failure.
func (s *Service) Cancel(ctx context.Context, reference, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}

	req := models.CancelPaymentRequest{
		Reference:         reference,
		UpdateDescription: reason,
	}

	var resp models.CancelPaymentResponse
	if err := s.client.Do(ctx, http.MethodPost, "/payment/cancel", req, &resp); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Kind == api.KindRejected {
			return &RejectionError{Message: rejectionMessage(apiErr.Message, "")}
		}
		slog.Error("Payment cancellation failed", "reference", reference, "error", err)
		return err
	}

	switch resp.ResponseCode {
	case http.StatusAccepted:
		slog.Info("Payment cancelled", "reference", reference)
		if _, err := s.List(ctx); err != nil {
			slog.Error("Failed to reload payments after cancellation", "error", err)
		}
		return nil
	case http.StatusBadRequest, http.StatusConflict:
		return &RejectionError{Message: rejectionMessage(resp.ResponseMessage, resp.Error)}
	default:
		slog.Warn("Unexpected cancellation outcome", "reference", reference, "responseCode", resp.ResponseCode)
		return errors.New("the payment could not be cancelled, please try again")
	}
}

// rejectionMessage special-cases the gateway's "previously cancelled" answer.
func rejectionMessage(message, gatewayError string) string {
	if strings.Contains(gatewayError, "previously cancelled") || strings.Contains(message, "previously cancelled") {
		return "This payment has already been cancelled"
	}
	if message != "" {
		return message
	}
	return "The payment could not be cancelled"
}

// StatusLabel maps a gateway status code to display text.
func StatusLabel(status string) string {
	switch status {
	case models.PaymentStatusCreated:
		return "Created"
	case models.PaymentStatusPaid:
		return "Paid"
	case models.PaymentStatusCancelled:
		return "Cancelled"
	case models.PaymentStatusExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// StatusColor maps a status code to a badge color class.
func StatusColor(status string) string {
	switch status {
	case models.PaymentStatusCreated:
		return "warning"
	case models.PaymentStatusPaid:
		return "success"
	case models.PaymentStatusCancelled:
		return "danger"
	default:
		return "secondary"
	}
}
