// Package invoice renders payment records as printable invoices.
package invoice

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/go-pdf/fpdf"
)

// Renderer writes an invoice document.
type Renderer interface {
	ContentType() string
	Render(ctx context.Context, inv *domain.Invoice, w io.Writer) error
}

// Colors used on the invoice.
var Colors = struct {
	Brand     string
	TextDark  string
	TextMuted string
	Border    string
	Paid      string
}{
	Brand:     "#1E3A5F",
	TextDark:  "#1F2937",
	TextMuted: "#6B7280",
	Border:    "#E5E7EB",
	Paid:      "#15803D",
}

// =============================================================================
// PDF Renderer
// =============================================================================

// PDFRenderer renders single-page A4 invoices.
type PDFRenderer struct {
	Issuer string // company name printed in the header

	pageWidth    float64
	margin       float64
	contentWidth float64
}

// NewPDFRenderer creates a renderer for the given issuer name.
func NewPDFRenderer(issuer string) *PDFRenderer {
	margin := 15.0
	pageWidth := 210.0
	return &PDFRenderer{
		Issuer:       issuer,
		pageWidth:    pageWidth,
		margin:       margin,
		contentWidth: pageWidth - (2 * margin),
	}
}

// ContentType returns application/pdf.
func (r *PDFRenderer) ContentType() string {
	return "application/pdf"
}

// Render writes the invoice PDF to w.
func (r *PDFRenderer) Render(ctx context.Context, inv *domain.Invoice, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.Number, true)
	pdf.SetAuthor(r.Issuer, true)
	pdf.SetCreator(r.Issuer, true)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	r.header(pdf, inv)
	r.billTo(pdf, inv)
	r.lineItems(pdf, inv)
	r.footer(pdf, inv)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf generation error: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf output error: %w", err)
	}
	return nil
}

func (r *PDFRenderer) header(pdf *fpdf.Fpdf, inv *domain.Invoice) {
	cr, cg, cb := HexToRGB(Colors.Brand)
	pdf.SetFillColor(cr, cg, cb)
	pdf.Rect(0, 0, r.pageWidth, 40, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetXY(r.margin, 12)
	pdf.Cell(0, 10, r.Issuer)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetXY(r.margin, 24)
	pdf.Cell(0, 6, "INVOICE")

	pdf.SetXY(r.pageWidth-r.margin-70, 12)
	pdf.CellFormat(70, 6, inv.Number, "", 2, "R", false, 0, "")
	pdf.SetX(r.pageWidth - r.margin - 70)
	pdf.CellFormat(70, 6, "Issued "+inv.IssuedAt.UTC().Format("January 2, 2006"), "", 0, "R", false, 0, "")

	cr, cg, cb = HexToRGB(Colors.TextDark)
	pdf.SetTextColor(cr, cg, cb)
	pdf.SetXY(r.margin, 55)
}

func (r *PDFRenderer) billTo(pdf *fpdf.Fpdf, inv *domain.Invoice) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(0, 6, "BILLED TO")
	pdf.Ln(7)

	pdf.SetFont("Helvetica", "", 11)
	if inv.CustomerName != "" {
		pdf.Cell(0, 6, inv.CustomerName)
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, inv.CustomerEmail)
	pdf.Ln(14)
}

func (r *PDFRenderer) lineItems(pdf *fpdf.Fpdf, inv *domain.Invoice) {
	amountCol := 45.0
	descCol := r.contentWidth - amountCol

	br, bg, bb := HexToRGB(Colors.Border)
	pdf.SetDrawColor(br, bg, bb)
	pdf.SetFillColor(249, 250, 251)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(descCol, 9, "Description", "B", 0, "L", true, 0, "")
	pdf.CellFormat(amountCol, 9, "Amount", "B", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(descCol, 10, inv.Description, "B", 0, "L", false, 0, "")
	pdf.CellFormat(amountCol, 10, inv.AmountText(), "B", 1, "R", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(descCol, 10, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(amountCol, 10, inv.AmountText(), "", 1, "R", false, 0, "")

	pdf.Ln(6)
	pr, pg, pb := HexToRGB(Colors.Paid)
	pdf.SetTextColor(pr, pg, pb)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "PAID")
	pdf.Ln(10)

	tr, tg, tb := HexToRGB(Colors.TextDark)
	pdf.SetTextColor(tr, tg, tb)
}

func (r *PDFRenderer) footer(pdf *fpdf.Fpdf, inv *domain.Invoice) {
	mr, mg, mb := HexToRGB(Colors.TextMuted)
	pdf.SetTextColor(mr, mg, mb)
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(r.contentWidth, 5, "Payment reference: "+inv.PaymentID, "", "L", false)
	pdf.MultiCell(r.contentWidth, 5, "This invoice was generated electronically and is valid without a signature.", "", "L", false)
}

// HexToRGB converts "#RRGGBB" to components. Malformed input yields black.
func HexToRGB(hex string) (r, g, b int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int((v >> 16) & 0xFF), int((v >> 8) & 0xFF), int(v & 0xFF)
}

var _ Renderer = (*PDFRenderer)(nil)
