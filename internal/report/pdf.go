package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/fklub/mpledger/internal/ledger"
	"github.com/fklub/mpledger/internal/money"
)

const (
	fontFamily     = "Arial"
	normalFontSize = 10.0
	titleFontSize  = 16.0
	smallFontSize  = 7.0
	footerFontSize = 8.0
	pageMargin     = 13.0
	infoLabelWidth = 60.0
	infoValueWidth = 20.0
)

type column struct {
	title string
	align string
	width float64
}

// Column widths fit an A4 page with the default margins.
var (
	membershipColumns = []column{
		{"Kl.", "R", 11},
		{"Besked", "L", 82},
		{"Tilm.gebyr, kr.", "R", 25},
		{"Indb., kr.", "R", 20},
		{"MP-gebyr, kr.", "R", 26},
		{"Gavekort, kr.", "R", 25},
	}
	salesColumns = []column{
		{"Kl.", "R", 11},
		{"Navn", "L", 101},
		{"Indb., kr.", "R", 26},
		{"Moms, kr.", "R", 23},
		{"MP-gebyr, kr.", "R", 28},
	}
)

// PDFRenderer draws one appendix per document.
type PDFRenderer struct {
	opts Options

	// Now stamps the document dates. Tests pin it for stable output.
	Now func() time.Time
}

// NewPDFRenderer creates a renderer.
func NewPDFRenderer(opts Options) *PDFRenderer {
	return &PDFRenderer{opts: opts, Now: time.Now}
}

// Render writes the PDF for a to w.
func (r *PDFRenderer) Render(w io.Writer, a *Appendix) error {
	pdf := r.document(a)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render appendix %d: %w", a.Ordinal, err)
	}
	return nil
}

// WriteFile renders a to path.
func (r *PDFRenderer) WriteFile(path string, a *Appendix) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, a); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (r *PDFRenderer) columns() []column {
	if r.opts.layout() == ledger.ProfileSales {
		return salesColumns
	}
	return membershipColumns
}

func (r *PDFRenderer) document(a *Appendix) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetCreationDate(r.Now())
	pdf.SetTitle(fmt.Sprintf("%s, bilag %d", r.opts.Title, a.Ordinal), true)
	pdf.SetCreator("mpledger", true)
	if r.opts.RunID != "" {
		pdf.SetKeywords(r.opts.RunID, true)
	}

	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AliasNbPages("{nb}")

	// Pages after the first repeat the table header.
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetFont(fontFamily, "", normalFontSize)
		pdf.SetTextColor(0, 0, 0)
		r.tableHeader(pdf, tr)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "", footerFontSize)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 10, strconv.Itoa(pdf.PageNo())+"/{nb}", "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	r.heading(pdf, tr, a)
	r.info(pdf, tr, a)
	r.tableHeader(pdf, tr)
	r.rows(pdf, tr, a)
	return pdf
}

func (r *PDFRenderer) heading(pdf *gofpdf.Fpdf, tr func(string) string, a *Appendix) {
	pdf.Ln(5)
	pdf.SetFont(fontFamily, "B", titleFontSize)
	pdf.CellFormat(0, 12, tr(r.opts.Title), "", 1, "L", false, 0, "")

	pdf.SetFont(fontFamily, "", normalFontSize)
	pdf.CellFormat(0, 6, tr("Bilagsdato: "+danishDate(a.VoucherDate)), "", 1, "L", false, 0, "")

	if len(r.opts.Organisation) > 0 {
		pdf.SetFont(fontFamily, "", smallFontSize)
		for _, line := range r.opts.Organisation {
			pdf.CellFormat(0, 3.5, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)
}

func (r *PDFRenderer) info(pdf *gofpdf.Fpdf, tr func(string) string, a *Appendix) {
	pdf.SetFont(fontFamily, "B", normalFontSize)
	_, size := pdf.GetFontSize()
	space := 1.5 * size

	pdf.CellFormat(0, space, "Oplysninger", "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", normalFontSize)

	line := func(label, value string) {
		pdf.CellFormat(infoLabelWidth, space, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(infoValueWidth, space, tr(value), "", 1, "R", false, 0, "")
	}
	amount := func(v money.Amount) string { return v.Format(money.Grouped) }

	line("Dato for indbetalinger:", danishDate(a.PaymentDate))
	line("Antal indbetalinger:", strconv.Itoa(a.Payments))

	if r.opts.layout() == ledger.ProfileSales {
		line("MobilePay-gebyr, kr.:", amount(a.GatewayFees))
		line("Indbetalt inkl. moms, kr.:", amount(a.Paid))
		line("Moms, kr.:", amount(a.VAT))
		line("Til banken, kr.:", amount(a.ToBank))
	} else {
		line("Antal tilmeldinger:", strconv.Itoa(a.Registrations))
		line("MobilePay-gebyr, kr.:", amount(a.GatewayFees))
		line("Indbetalt, kr.:", amount(a.Paid))
		line("Til banken, kr.:", amount(a.ToBank))
		line("Gavekort, kr.:", amount(a.Vouchers))
		line("Tilmeldingsgebyr inkl. moms, kr.:", amount(a.RegistrationFees))
		line("Moms, kr.:", amount(a.VAT))
	}
	pdf.Ln(1.5 * size)
}

func (r *PDFRenderer) tableHeader(pdf *gofpdf.Fpdf, tr func(string) string) {
	_, size := pdf.GetFontSize()
	for _, col := range r.columns() {
		pdf.CellFormat(col.width, 1.5*size, tr(col.title), "B", 0, col.align, false, 0, "")
	}
	pdf.Ln(2 * size)
}

func (r *PDFRenderer) rows(pdf *gofpdf.Fpdf, tr func(string) string, a *Appendix) {
	cols := r.columns()
	_, size := pdf.GetFontSize()
	height := 2 * size

	for _, row := range a.Rows {
		if row.IsRefund {
			pdf.SetTextColor(220, 0, 0)
		} else {
			pdf.SetTextColor(0, 0, 0)
		}

		var cells []string
		if r.opts.layout() == ledger.ProfileSales {
			cells = []string{
				row.Time.Format("15:04"),
				row.Payer,
				row.Amount.Format(money.Grouped),
				row.VAT.Format(money.Grouped),
				row.GatewayFee.Format(money.Grouped),
			}
		} else {
			fee := ""
			if row.IsRegistration {
				fee = row.RegistrationFee.Format(money.Grouped)
			}
			cells = []string{
				row.Time.Format("15:04"),
				row.Text,
				fee,
				row.Amount.Format(money.Grouped),
				row.GatewayFee.Format(money.Grouped),
				row.Voucher.Format(money.Grouped),
			}
		}

		for i, text := range cells {
			italic := i == 1 && row.Italic && r.opts.layout() != ledger.ProfileSales
			if italic {
				pdf.SetFont(fontFamily, "I", normalFontSize)
			}
			pdf.CellFormat(cols[i].width, height, tr(text), "", 0, cols[i].align, false, 0, "")
			if italic {
				pdf.SetFont(fontFamily, "", normalFontSize)
			}
		}
		pdf.Ln(height)
	}
	pdf.SetTextColor(0, 0, 0)
}
