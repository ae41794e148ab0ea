package invoices

import (
	"bytes"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/go-pdf/fpdf"
)

const timeLayout = "2006-01-02 15:04:05"

// Render lays out the invoice PDF. The same snapshot always yields the same bytes:
// every timestamp in the document comes from the snapshot, and product details
// come from the order, which froze them at creation.
func Render(snap orders.InvoiceSnapshot, currency string) ([]byte, error) {
	inv, so, o, p := snap.Invoice, snap.SalesOrder, snap.Order, snap.Product
	money := func(cents int64) string { return orders.FormatAmount(cents, currency) }

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(inv.IssuedAt)
	pdf.SetModificationDate(inv.IssuedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Invoice "+inv.ID, true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "INVOICE", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	line := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, tr(value), "", "L", false)
	}
	heading := func(s string) {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, s, "B", 1, "L", false, 0, "")
		pdf.Ln(1)
	}

	line("Invoice ID:", inv.ID)
	line("Issued at:", inv.IssuedAt.UTC().Format(timeLayout))
	line("Order ID:", o.ID)
	line("Sales order status:", string(so.Status))
	line("Total:", money(so.TotalCents))
	line("Created at:", so.CreatedAt.UTC().Format(timeLayout))

	heading("Buyer")
	line("User ID:", o.BuyerID)

	if pay := snap.Payment; pay != nil {
		heading("Payment")
		line("Method:", pay.Method)
		line("Status:", string(pay.Status))
		line("Reference:", pay.ExternalIntentID)
		line("Created at:", pay.CreatedAt.UTC().Format(timeLayout))
	}

	title := o.ProductTitle
	if title == "" {
		// orders placed before titles were recorded
		title = p.Title
	}
	heading("Product")
	line("Title:", title)
	line("Seller ID:", p.OwnerID)

	heading("Order details")
	widths := []float64{80, 25, 40, 45}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range []string{"Item", "Quantity", "Unit price", "Total"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetFillColor(245, 245, 220)
	pdf.SetTextColor(0, 0, 0)
	row := []string{tr(title), fmt.Sprint(o.Quantity), money(o.UnitPriceCents), money(o.TotalCents)}
	for i, c := range row {
		pdf.CellFormat(widths[i], 8, c, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return buf.Bytes(), nil
}
