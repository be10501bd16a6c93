package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/cart"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/checkout"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/voucher"
)

// dueDateFormLayout matches the value of an <input type="datetime-local">.
const dueDateFormLayout = "2006-01-02T15:04"

// CheckoutHandler drives the payment workflow from the web UI.
type CheckoutHandler struct {
	Cart         *cart.Store
	Workflow     *checkout.Workflow
	Templates    *TemplateCache
	SessionStore *sessions.CookieStore
}

func (h *CheckoutHandler) Form(w http.ResponseWriter, r *http.Request) {
	sess, _ := h.SessionStore.Get(r, sessionName)

	items := h.Cart.Items()
	if len(items) == 0 {
		sess.AddFlash(FlashMessage{Type: "error", Message: "Your cart is empty."})
		sess.Save(r, w)
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}

	tmpl := h.Templates.Get("checkout.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	subtotal, tax, total := h.Workflow.Totals()
	data := map[string]interface{}{
		"Items":       items,
		"Subtotal":    subtotal,
		"Tax":         tax,
		"Total":       total,
		"Description": h.Workflow.Description(),
		"DueDate":     h.Workflow.DefaultDueDate().Format(dueDateFormLayout),
		"Flashes":     GetFlash(sess),
		"CsrfField":   csrfField(r),
	}
	sess.Save(r, w)
	tmpl.Execute(w, data)
}

func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, _ := h.SessionStore.Get(r, sessionName)

	dueDate, err := time.ParseInLocation(dueDateFormLayout, r.FormValue("due_date"), time.Local)
	if err != nil {
		sess.AddFlash(FlashMessage{Type: "error", Message: "A valid payment due date is required."})
		sess.Save(r, w)
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
		return
	}

	result, err := h.Workflow.Submit(r.Context(), dueDate)
	if err != nil {
		var vErr *checkout.ValidationError
		switch {
		case errors.As(err, &vErr):
			for _, problem := range vErr.Problems {
				sess.AddFlash(FlashMessage{Type: "error", Message: problem})
			}
		case errors.Is(err, checkout.ErrMissingReference):
			sess.AddFlash(FlashMessage{Type: "error", Message: "The payment reference could not be obtained. Please contact support."})
		default:
			sess.AddFlash(FlashMessage{Type: "error", Message: checkout.DisplayError(err)})
		}
		sess.Save(r, w)
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
		return
	}

	slog.Info("Checkout completed", "reference", result.Reference)
	sess.Save(r, w)
	http.Redirect(w, r, "/checkout/success", http.StatusSeeOther)
}

// Success renders the stored checkout outcome. The totals shown come from
// the submission-time snapshot, so the view stays correct after the delayed
// cart clearing runs.
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	result := h.Workflow.Result()
	if result == nil {
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
		return
	}

	tmpl := h.Templates.Get("checkout_success.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	sess, _ := h.SessionStore.Get(r, sessionName)
	data := map[string]interface{}{
		"Reference":   result.Reference,
		"Subtotal":    result.Subtotal,
		"Tax":         result.Tax,
		"Total":       result.Total,
		"Description": result.Description,
		"Flashes":     GetFlash(sess),
	}
	sess.Save(r, w)
	tmpl.Execute(w, data)
}

// Voucher downloads the PDF voucher for the stored payment. Without a stored
// payment record this is a no-op redirect.
func (h *CheckoutHandler) Voucher(w http.ResponseWriter, r *http.Request) {
	result := h.Workflow.Result()
	if result == nil {
		sess, _ := h.SessionStore.Get(r, sessionName)
		sess.AddFlash(FlashMessage{Type: "error", Message: "There is no payment voucher to download."})
		sess.Save(r, w)
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+voucher.Filename(result.Record)+`"`)
	if err := voucher.Render(w, result.Record); err != nil {
		slog.Error("Failed to render voucher", "reference", result.Reference, "error", err)
	}
}
