package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/api"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/cart"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/models"
)

var (
	printer = models.Product{ID: 1, Name: "Prusa i3 MK4", Price: 1000.00}
	nozzle  = models.Product{ID: 2, Name: "Ender 3 V3", Price: 250.50}
)

func newWorkflow(t *testing.T, handler http.HandlerFunc) (*Workflow, *cart.Store) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := api.New(server.URL, server.URL, "key")
	cartStore := cart.New()
	w := New(cartStore, client, "https://store.example.com/callback")
	w.ClearDelay = 20 * time.Millisecond
	return w, cartStore
}

func TestTotals_AppliesNineteenPercentTax(t *testing.T) {
	w, cartStore := newWorkflow(t, func(rw http.ResponseWriter, r *http.Request) {})
	cartStore.Add(printer, 2)

	subtotal, tax, total := w.Totals()
	assert.InDelta(t, 2000.00, subtotal, 0.001)
	assert.InDelta(t, 380.00, tax, 0.001)
	assert.InDelta(t, 2380.00, total, 0.001)
}

func TestDescription_ListsItemsWithQuantities(t *testing.T) {
	w, cartStore := newWorkflow(t, func(rw http.ResponseWriter, r *http.Request) {})

	assert.Empty(t, w.Description())

	cartStore.Add(printer, 2)
	cartStore.Add(nozzle, 1)
	assert.Equal(t, "Order: Prusa i3 MK4 (x2), Ender 3 V3 (x1)", w.Description())
}

func TestGenerateExternalID_Shape(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD-\d{13}-[0-9A-Z]{7}$`)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id := GenerateExternalID("ORD")
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], "duplicate external ID %s", id)
		seen[id] = true
	}
}

func TestValidateRequest(t *testing.T) {
	w, _ := newWorkflow(t, func(rw http.ResponseWriter, r *http.Request) {})
	w.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.Local) }

	valid := models.PaymentRequest{
		ExternalID:  "ORD-1",
		Amount:      100.50,
		Description: "Order: something",
		DueDate:     "2026-09-08 12:00:00",
	}
	assert.Empty(t, w.ValidateRequest(valid))

	tests := []struct {
		name    string
		mutate  func(*models.PaymentRequest)
		problem string
	}{
		{"missing external ID", func(r *models.PaymentRequest) { r.ExternalID = " " }, "external ID is required"},
		{"zero amount", func(r *models.PaymentRequest) { r.Amount = 0 }, "amount must be greater than 0"},
		{"negative amount", func(r *models.PaymentRequest) { r.Amount = -5 }, "amount must be greater than 0"},
		{"too many decimals", func(r *models.PaymentRequest) { r.Amount = 10.123 }, "amount must have exactly 2 decimals"},
		{"missing description", func(r *models.PaymentRequest) { r.Description = "" }, "description is required"},
		{"missing due date", func(r *models.PaymentRequest) { r.DueDate = "" }, "due date is required"},
		{"malformed due date", func(r *models.PaymentRequest) { r.DueDate = "tomorrow" }, "due date is not a valid date"},
		{"past due date", func(r *models.PaymentRequest) { r.DueDate = "2020-01-01 00:00:00" }, "due date must be in the future"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			assert.Contains(t, w.ValidateRequest(req), tt.problem)
		})
	}
}

func TestSubmit_SuccessClearsCartAfterDelay(t *testing.T) {
	var gotReq models.PaymentRequest
	w, cartStore := newWorkflow(t, func(rw http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment/process", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		rw.Write([]byte(`{"reference":"REF-42","status":"01"}`))
	})
	cartStore.Add(printer, 1)

	result, err := w.Submit(context.Background(), time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "REF-42", result.Reference)
	assert.InDelta(t, 1000.00, result.Subtotal, 0.001)
	assert.InDelta(t, 1190.00, result.Total, 0.001)
	assert.Equal(t, models.PaymentStatusCreated, result.Record.Status)
	assert.Equal(t, "https://store.example.com/callback", gotReq.CallbackURL)

	// The cart survives long enough for the success view, then empties.
	assert.NotEmpty(t, cartStore.Items())
	assert.Eventually(t, func() bool { return len(cartStore.Items()) == 0 },
		time.Second, 5*time.Millisecond)

	// The snapshot is unaffected by the clearing.
	assert.InDelta(t, 1190.00, w.Result().Total, 0.001)
}

func TestSubmit_ReferenceFromDataPayload(t *testing.T) {
	w, cartStore := newWorkflow(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(`{"data":{"reference":"DATA-REF","status":"01","amount":1190}}`))
	})
	cartStore.Add(printer, 1)

	result, err := w.Submit(context.Background(), time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "DATA-REF", result.Reference)
}

func TestSubmit_MissingReferenceIsFatal(t *testing.T) {
	w, cartStore := newWorkflow(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(`{"responseMessage":"ok but useless"}`))
	})
	cartStore.Add(printer, 1)

	_, err := w.Submit(context.Background(), time.Now().Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrMissingReference)

	// No success state, and the cart stays untouched.
	assert.Nil(t, w.Result())
	time.Sleep(50 * time.Millisecond)
	assert.NotEmpty(t, cartStore.Items())
}

func TestSubmit_PastDueDateRejectedLocally(t *testing.T) {
	requests := 0
	w, cartStore := newWorkflow(t, func(rw http.ResponseWriter, r *http.Request) { requests++ })
	cartStore.Add(printer, 1)

	_, err := w.Submit(context.Background(), time.Now().Add(-time.Hour))

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Problems, "due date must be in the future")
	assert.Zero(t, requests, "invalid requests must never reach the gateway")
}

func TestSubmit_EmptyCartRejectedLocally(t *testing.T) {
	w, _ := newWorkflow(t, func(rw http.ResponseWriter, r *http.Request) {
		t.Error("empty cart must not reach the gateway")
	})

	_, err := w.Submit(context.Background(), time.Now().Add(24*time.Hour))

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestSubmit_GatewayRejection(t *testing.T) {
	w, cartStore := newWorkflow(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusBadRequest)
		rw.Write([]byte(`{"message":"amount exceeds the allowed maximum"}`))
	})
	cartStore.Add(printer, 1)

	_, err := w.Submit(context.Background(), time.Now().Add(24*time.Hour))
	require.Error(t, err)
	assert.Equal(t, "amount exceeds the allowed maximum", DisplayError(err))
	assert.Nil(t, w.Result())
}

func TestDisplayError(t *testing.T) {
	assert.Equal(t, "boom", DisplayError(&api.Error{Kind: api.KindRejected, Status: 400, Message: "boom"}))
	assert.Equal(t, "Error 502: the payment could not be processed",
		DisplayError(&api.Error{Kind: api.KindServer, Status: 502}))
	assert.Equal(t, "plain failure", DisplayError(errors.New("plain failure")))
}

func TestFormatDueDate(t *testing.T) {
	due := time.Date(2026, 9, 8, 15, 30, 0, 0, time.Local)
	assert.Equal(t, "2026-09-08 15:30:00", FormatDueDate(due))
}
