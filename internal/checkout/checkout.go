// Package checkout drives the payment workflow: totals with tax, request
// validation, submission to the payment gateway and the post-success side
// effects (snapshotting the displayed totals and clearing the cart).
package checkout

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/api"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/cart"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/models"
)

// TaxRate applied to the cart subtotal.
const TaxRate = 0.19

// dueDateLayout is the gateway's expected due-date format.
const dueDateLayout = "2006-01-02 15:04:05"

// ErrMissingReference means the gateway answered 2xx but the response carried
// no payment reference. The checkout must NOT be treated as successful.
var ErrMissingReference = errors.New("payment response carried no reference")

// ValidationError collects the local validation failures that blocked a
// submission. These never reach the network.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "payment validation failed: " + strings.Join(e.Problems, "; ")
}

// Result is the outcome of a successful checkout. The totals are snapshotted
// at submission time and stay stable even after the cart is cleared.
type Result struct {
	Reference   string
	Record      models.PaymentRecord
	Subtotal    float64
	Tax         float64
	Total       float64
	Description string
}

// Workflow validates and submits payments for the current cart.
type Workflow struct {
	cart        *cart.Store
	client      *api.Client
	callbackURL string

	// ClearDelay is how long the success view gets to render cart-derived
	// totals before the cart is emptied.
	ClearDelay time.Duration

	now func() time.Time

	mu         sync.Mutex
	result     *Result
	clearTimer *time.Timer
}

func New(cartStore *cart.Store, client *api.Client, callbackURL string) *Workflow {
	return &Workflow{
		cart:        cartStore,
		client:      client,
		callbackURL: callbackURL,
		ClearDelay:  2 * time.Second,
		now:         time.Now,
	}
}

// Totals computes subtotal, tax and total for the current cart contents.
func (w *Workflow) Totals() (subtotal, tax, total float64) {
	subtotal = w.cart.Total()
	tax = subtotal * TaxRate
	total = subtotal + tax
	return subtotal, tax, total
}

// Description builds the auto-generated payment description from the cart,
// e.g. "Order: Prusa i3 MK4 (x2), Anycubic Vyper (x1)".
func (w *Workflow) Description() string {
	items := w.cart.Items()
	if len(items) == 0 {
		return ""
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, fmt.Sprintf("%s (x%d)", item.Product.Name, item.Quantity))
	}
	return "Order: " + strings.Join(names, ", ")
}

// DefaultDueDate is seven days from now.
func (w *Workflow) DefaultDueDate() time.Time {
	return w.now().Add(7 * 24 * time.Hour)
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateExternalID builds a unique payment identifier shaped
// <prefix>-<unix millis>-<7 base36 chars>, uppercased.
func GenerateExternalID(prefix string) string {
	b := make([]byte, 7)
	if _, err := rand.Read(b); err != nil {
		return strings.ToUpper(prefix + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10))
	}
	for i := range b {
		b[i] = base36[int(b[i])%len(base36)]
	}
	id := fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), b)
	return strings.ToUpper(id)
}

// FormatDueDate renders a due date the way the gateway expects it.
func FormatDueDate(t time.Time) string {
	return t.Format(dueDateLayout)
}

// hasTwoDecimals reports whether amount equals its own 2-decimal rounding.
func hasTwoDecimals(amount float64) bool {
	return amount == math.Round(amount*100)/100
}

// ValidateRequest re-checks the full request the way the gateway validates it.
// Returns the list of problems, empty when the request is valid.
func (w *Workflow) ValidateRequest(req models.PaymentRequest) []string {
	var problems []string

	if strings.TrimSpace(req.ExternalID) == "" {
		problems = append(problems, "external ID is required")
	}
	if req.Amount <= 0 {
		problems = append(problems, "amount must be greater than 0")
	} else if !hasTwoDecimals(req.Amount) {
		problems = append(problems, "amount must have exactly 2 decimals")
	}
	if strings.TrimSpace(req.Description) == "" {
		problems = append(problems, "description is required")
	}
	if strings.TrimSpace(req.DueDate) == "" {
		problems = append(problems, "due date is required")
	} else if due, err := time.ParseInLocation(dueDateLayout, req.DueDate, time.Local); err != nil {
		problems = append(problems, "due date is not a valid date")
	} else if !due.After(w.now()) {
		problems = append(problems, "due date must be in the future")
	}

	return problems
}

// Submit validates the due date, posts the payment request built from the
// current cart and, on success, snapshots the totals and schedules the cart
// to be cleared after ClearDelay.
func (w *Workflow) Submit(ctx context.Context, dueDate time.Time) (*Result, error) {
	if dueDate.IsZero() || !dueDate.After(w.now()) {
		return nil, &ValidationError{Problems: []string{"due date must be in the future"}}
	}

	subtotal, tax, total := w.Totals()
	amount := math.Round(total*100) / 100
	description := w.Description()

	req := models.PaymentRequest{
		ExternalID:  GenerateExternalID("ORD"),
		Amount:      amount,
		Description: description,
		DueDate:     FormatDueDate(dueDate),
		CallbackURL: w.callbackURL,
	}

	if problems := w.ValidateRequest(req); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	slog.Info("Submitting payment", "externalId", req.ExternalID, "amount", req.Amount, "dueDate", req.DueDate)

	var resp models.PaymentResponse
	if err := w.client.Do(ctx, http.MethodPost, "/payment/process", req, &resp); err != nil {
		slog.Error("Payment submission failed", "externalId", req.ExternalID, "error", err)
		return nil, err
	}

	reference := resp.Reference
	if reference == "" {
		reference = resp.DataReference()
	}
	if reference == "" {
		// The call "succeeded" but the answer is unusable. Surface a fatal
		// error and leave the cart untouched.
		slog.Warn("Payment response missing reference", "externalId", req.ExternalID)
		return nil, ErrMissingReference
	}

	result := &Result{
		Reference:   reference,
		Record:      buildRecord(reference, amount, description, &resp),
		Subtotal:    subtotal,
		Tax:         tax,
		Total:       amount,
		Description: description,
	}

	w.mu.Lock()
	w.result = result
	if w.clearTimer != nil {
		w.clearTimer.Stop()
	}
	w.clearTimer = time.AfterFunc(w.ClearDelay, w.cart.Clear)
	w.mu.Unlock()

	slog.Info("Payment processed", "reference", reference, "amount", amount)
	return result, nil
}

// Result returns the stored checkout outcome, or nil when no payment has
// succeeded yet. Voucher download is only possible with a stored result.
func (w *Workflow) Result() *Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// DisplayError turns a submission failure into the message shown to the
// user: structured gateway message first, then the error's own message,
// then a status-derived fallback.
func DisplayError(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fmt.Sprintf("Error %d: the payment could not be processed", apiErr.Status)
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return "The payment could not be processed. Please try again."
}

// buildRecord prefers the gateway's structured data payload; when the
// response lacks one, a record is synthesized from the fields at hand.
func buildRecord(reference string, amount float64, description string, resp *models.PaymentResponse) models.PaymentRecord {
	if len(resp.Data) > 0 {
		raw, err := json.Marshal(resp.Data)
		if err == nil {
			var record models.PaymentRecord
			if err := json.Unmarshal(raw, &record); err == nil && record.Reference != "" {
				return record
			}
		}
	}

	status := resp.Status
	if status == "" {
		status = models.PaymentStatusCreated
	}
	return models.PaymentRecord{
		Reference:       reference,
		Amount:          amount,
		Description:     description,
		Status:          status,
		ResponseMessage: resp.ResponseMessage,
	}
}
