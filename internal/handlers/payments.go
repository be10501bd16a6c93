package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/sessions"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/models"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/payments"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/voucher"
)

// PaymentsHandler renders the payment list and drives cancellation and the
// auto-refresh toggle.
type PaymentsHandler struct {
	Payments     *payments.Service
	Templates    *TemplateCache
	SessionStore *sessions.CookieStore

	mu          sync.Mutex
	autoRefresh bool
}

// paymentRow pairs a record with its display attributes for the template.
type paymentRow struct {
	models.PaymentRecord
	StatusLabel string
	StatusColor string
	CanCancel   bool
}

func (h *PaymentsHandler) List(w http.ResponseWriter, r *http.Request) {
	tmpl := h.Templates.Get("payments.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	sess, _ := h.SessionStore.Get(r, sessionName)
	flashes := GetFlash(sess)

	fromCache := false
	records, err := h.Payments.List(r.Context())
	if err != nil {
		cached, cacheErr := h.Payments.Cached()
		if cacheErr != nil || cached == nil {
			flashes = append(flashes, FlashMessage{Type: "error", Message: "Could not load payments: " + err.Error()})
		} else {
			fromCache = true
			records = cached
			flashes = append(flashes, FlashMessage{Type: "error", Message: "The payment gateway is unreachable. Showing locally cached records."})
		}
	}

	filter := parseFilter(r)
	filtered := filter.Apply(records)

	rows := make([]paymentRow, 0, len(filtered))
	for _, rec := range filtered {
		rows = append(rows, paymentRow{
			PaymentRecord: rec,
			StatusLabel:   payments.StatusLabel(rec.Status),
			StatusColor:   payments.StatusColor(rec.Status),
			CanCancel:     payments.CanCancel(rec),
		})
	}

	h.mu.Lock()
	autoRefresh := h.autoRefresh
	h.mu.Unlock()

	data := map[string]interface{}{
		"Payments":    rows,
		"Total":       len(records),
		"Shown":       len(rows),
		"Filter":      filter,
		"Filtered":    !filter.IsZero(),
		"FromCache":   fromCache,
		"AutoRefresh": autoRefresh,
		"Flashes":     flashes,
		"CsrfField":   csrfField(r),
	}
	sess.Save(r, w)
	tmpl.Execute(w, data)
}

func (h *PaymentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sess, _ := h.SessionStore.Get(r, sessionName)
	defer sess.Save(r, w)

	reference := r.FormValue("reference")
	reason := r.FormValue("reason")
	if reference == "" {
		sess.AddFlash(FlashMessage{Type: "error", Message: "Missing payment reference."})
		http.Redirect(w, r, "/payments", http.StatusSeeOther)
		return
	}

	err := h.Payments.Cancel(r.Context(), reference, reason)
	var rejection *payments.RejectionError
	switch {
	case err == nil:
		sess.AddFlash(FlashMessage{Type: "success", Message: "Payment " + reference + " cancelled."})
	case errors.Is(err, payments.ErrReasonRequired):
		sess.AddFlash(FlashMessage{Type: "error", Message: "A cancellation reason is required."})
	case errors.As(err, &rejection):
		sess.AddFlash(FlashMessage{Type: "error", Message: rejection.Message})
	default:
		sess.AddFlash(FlashMessage{Type: "error", Message: "Could not cancel the payment: " + err.Error()})
	}
	http.Redirect(w, r, "/payments", http.StatusSeeOther)
}

// Voucher downloads the PDF voucher for any listed payment, resolved by
// reference from the last fetched list or the history cache.
func (h *PaymentsHandler) Voucher(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	record, ok := h.Payments.Find(reference)
	if !ok {
		sess, _ := h.SessionStore.Get(r, sessionName)
		sess.AddFlash(FlashMessage{Type: "error", Message: "No voucher is available for that payment."})
		sess.Save(r, w)
		http.Redirect(w, r, "/payments", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+voucher.Filename(record)+`"`)
	if err := voucher.Render(w, record); err != nil {
		slog.Error("Failed to render voucher", "reference", reference, "error", err)
	}
}

// ToggleAutoRefresh starts or stops the background polling schedule.
func (h *PaymentsHandler) ToggleAutoRefresh(w http.ResponseWriter, r *http.Request) {
	enable := r.FormValue("enabled") == "true"

	h.mu.Lock()
	h.autoRefresh = enable
	h.mu.Unlock()

	sess, _ := h.SessionStore.Get(r, sessionName)
	if enable {
		h.Payments.StartAutoRefresh()
		sess.AddFlash(FlashMessage{Type: "success", Message: "Auto-refresh enabled."})
	} else {
		h.Payments.StopAutoRefresh()
		sess.AddFlash(FlashMessage{Type: "success", Message: "Auto-refresh disabled."})
	}
	sess.Save(r, w)
	http.Redirect(w, r, "/payments", http.StatusSeeOther)
}

func parseFilter(r *http.Request) payments.Filter {
	q := r.URL.Query()
	f := payments.Filter{
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		DateFrom: q.Get("from"),
		DateTo:   q.Get("to"),
	}
	if v, err := strconv.ParseFloat(q.Get("amountFrom"), 64); err == nil {
		f.AmountFrom = &v
	}
	if v, err := strconv.ParseFloat(q.Get("amountTo"), 64); err == nil {
		f.AmountTo = &v
	}
	return f
}
