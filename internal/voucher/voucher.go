// Package voucher renders the downloadable PDF payment voucher.
package voucher

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/models"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/payments"
)

// Filename is the suggested download name for a voucher.
func Filename(record models.PaymentRecord) string {
	return "payment-voucher-" + record.Reference + ".pdf"
}

// Render writes the voucher PDF for the given payment record.
func Render(w io.Writer, record models.PaymentRecord) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	pageWidth, pageHeight := doc.GetPageSize()

	// Header band
	doc.SetFillColor(102, 126, 234)
	doc.Rect(0, 0, pageWidth, 30, "F")
	doc.SetTextColor(255, 255, 255)
	doc.SetFont("Helvetica", "B", 24)
	doc.Text(20, 20, "PAYMENT VOUCHER")

	doc.SetTextColor(30, 41, 59)
	y := 45.0
	doc.SetFont("Helvetica", "B", 12)
	doc.Text(20, y, "PAYMENT DETAILS")
	y += 10

	fields := []struct {
		label string
		value string
	}{
		{"Payment ID:", record.PaymentID},
		{"Reference:", record.Reference},
		{"Status:", payments.StatusLabel(record.Status)},
		{"Amount:", fmt.Sprintf("$%.2f", record.Amount)},
		{"Description:", orNA(record.Description)},
		{"Created:", displayTime(record.CreatedAt)},
		{"Last update:", displayTime(record.UpdatedAt)},
		{"Message:", orNA(record.ResponseMessage)},
	}

	doc.SetFontSize(10)
	for _, f := range fields {
		doc.SetFont("Helvetica", "B", 10)
		doc.Text(20, y, f.label)
		labelWidth := doc.GetStringWidth(f.label)
		doc.SetFont("Helvetica", "", 10)

		maxValueWidth := pageWidth - labelWidth - 40
		lines := doc.SplitText(f.value, maxValueWidth)
		for i, line := range lines {
			doc.Text(20+labelWidth+5, y+float64(i)*5, line)
		}
		if len(lines) > 1 {
			y += float64(len(lines))*5 + 2
		} else {
			y += 8
		}
	}

	// Footer band
	y = pageHeight - 30
	doc.SetFillColor(241, 245, 249)
	doc.Rect(0, y-5, pageWidth, 35, "F")
	doc.SetTextColor(120, 120, 120)
	doc.SetFont("Helvetica", "I", 9)
	doc.Text(20, y, "This voucher was generated automatically. Please keep it for your records.")
	doc.Text(20, y+8, "Generated: "+time.Now().Format("2006-01-02 15:04:05"))

	return doc.Output(w)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// displayTime re-renders a gateway timestamp in a readable form, falling
// back to the raw string when it cannot be parsed.
func displayTime(s string) string {
	if s == "" {
		return "N/A"
	}
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("January 2, 2006 15:04:05")
		}
	}
	return s
}
