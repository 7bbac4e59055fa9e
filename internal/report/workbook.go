package report

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/fklub/mpledger/internal/ledger"
	"github.com/fklub/mpledger/internal/money"
)

// SummarySheet lists one line per appendix. Each appendix also gets a sheet
// named by its number.
const SummarySheet = "Bilag"

// "#,##0.00"
const numFmtAmount = 4

var summaryHeader = []interface{}{
	"Bilag nr.", "Bilagsdato", "Dato for indbetalinger", "Indbetalinger", "Refunderinger",
	"Tilmeldinger", "Indbetalt, kr.", "MP-gebyr, kr.", "Til banken, kr.", "Gavekort, kr.",
	"Tilmeldingsgebyr, kr.", "Moms, kr.",
}

// Workbook collects appendices into a single spreadsheet.
type Workbook struct {
	opts Options
}

// NewWorkbook creates a workbook writer.
func NewWorkbook(opts Options) *Workbook {
	return &Workbook{opts: opts}
}

// WriteFile builds the workbook and saves it to path.
func (w *Workbook) WriteFile(path string, appendices []*Appendix) error {
	f, err := w.build(appendices)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func (w *Workbook) build(appendices []*Appendix) (*excelize.File, error) {
	f := excelize.NewFile()

	fail := func(err error) (*excelize.File, error) {
		f.Close()
		return nil, fmt.Errorf("failed to build workbook: %w", err)
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:      w.opts.Title,
		Creator:    "mpledger",
		Identifier: w.opts.RunID,
	}); err != nil {
		return fail(err)
	}

	first := f.GetSheetName(0)
	if err := f.SetSheetName(first, SummarySheet); err != nil {
		return fail(err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return fail(err)
	}

	if err := f.SetSheetRow(SummarySheet, "A1", &summaryHeader); err != nil {
		return fail(err)
	}
	if err := f.SetRowStyle(SummarySheet, 1, 1, styles.header); err != nil {
		return fail(err)
	}

	for i, a := range appendices {
		row := i + 2
		values := []interface{}{
			a.Ordinal, danishDate(a.VoucherDate), danishDate(a.PaymentDate),
			a.Payments, a.Refunds, a.Registrations,
			major(a.Paid), major(a.GatewayFees), major(a.ToBank), major(a.Vouchers),
			major(a.RegistrationFees), major(a.VAT),
		}
		if err := setRow(f, SummarySheet, row, values); err != nil {
			return fail(err)
		}
		if err := f.SetCellStyle(SummarySheet, cell(7, row), cell(12, row), styles.amount); err != nil {
			return fail(err)
		}

		if err := w.appendixSheet(f, styles, a); err != nil {
			return fail(err)
		}
	}

	if err := f.SetColWidth(SummarySheet, "A", "L", 16); err != nil {
		return fail(err)
	}
	return f, nil
}

func (w *Workbook) appendixSheet(f *excelize.File, styles styles, a *Appendix) error {
	sheet := strconv.Itoa(a.Ordinal)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	sales := w.opts.layout() == ledger.ProfileSales
	header := []interface{}{"Kl.", "Besked", "Navn", "Tilm.gebyr, kr.", "Indb., kr.", "MP-gebyr, kr.", "Gavekort, kr."}
	if sales {
		header = []interface{}{"Kl.", "Navn", "Indb., kr.", "Moms, kr.", "MP-gebyr, kr."}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, styles.header); err != nil {
		return err
	}

	for i, r := range a.Rows {
		row := i + 2

		var values []interface{}
		if sales {
			values = []interface{}{r.Time.Format("15:04"), r.Payer, major(r.Amount), major(r.VAT), major(r.GatewayFee)}
		} else {
			message := r.Text
			if r.Italic {
				message = ""
			}
			var fee interface{}
			if r.IsRegistration {
				fee = major(r.RegistrationFee)
			}
			values = []interface{}{r.Time.Format("15:04"), message, r.Payer, fee,
				major(r.Amount), major(r.GatewayFee), major(r.Voucher)}
		}
		if err := setRow(f, sheet, row, values); err != nil {
			return err
		}

		style := styles.amount
		if r.IsRefund {
			style = styles.refund
		}
		first := 4
		if sales {
			first = 3
		}
		if err := f.SetCellStyle(sheet, cell(first, row), cell(len(values), row), style); err != nil {
			return err
		}
	}

	last, _ := excelize.ColumnNumberToName(len(header))
	return f.SetColWidth(sheet, "A", last, 16)
}

type styles struct {
	header int
	amount int
	refund int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error

	if s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, err
	}
	if s.amount, err = f.NewStyle(&excelize.Style{NumFmt: numFmtAmount}); err != nil {
		return s, err
	}
	s.refund, err = f.NewStyle(&excelize.Style{
		NumFmt: numFmtAmount,
		Font:   &excelize.Font{Color: "DC0000"},
	})
	return s, err
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	return f.SetSheetRow(sheet, cell(1, row), &values)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// major converts to kroner for spreadsheet arithmetic.
func major(a money.Amount) float64 {
	return float64(a.Minor()) / 100
}
