// =============================================================================
// mpledger - XLSX Export Parser
// =============================================================================
//
// This module reads the Excel variant of the MobilePay MyShop export into the
// same row structure the CSV parser produces, so the gateway decoder does not
// care which format was downloaded.
//
// CELL VALUES:
//   Cells are read raw, without the workbook's number formats:
//   - Amounts keep Excel's own notation, e.g. "200" or "-3.5". Amount
//     columns are rounded to whole øre, since Excel stores 19,90 as
//     "19.899999999999999". Decode them with money.Style{DecimalSep: "."}.
//   - Date columns hold Excel serial numbers. They are converted to
//     "2006-01-02T15:04:05" (see TimeLayout). Text cells are left as they are.
//
// =============================================================================

package xlsxparser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/fklub/mpledger/internal/csvparser"
	"github.com/fklub/mpledger/internal/money"
)

// TimeLayout is the layout date cells are rendered in.
const TimeLayout = "2006-01-02T15:04:05"

// AmountStyle decodes the raw amount cells.
var AmountStyle = money.Style{DecimalSep: "."}

// ErrNoSheet is returned when the requested sheet does not exist.
var ErrNoSheet = errors.New("sheet not found")

// =============================================================================
// SETTINGS
// =============================================================================

// Settings controls how a workbook is read.
type Settings struct {
	// Sheet to read. Default: the first sheet.
	Sheet string

	// HeaderRow is the 1-based row of the header. Default: 1
	HeaderRow int

	// DateColumns are converted from Excel serial numbers.
	DateColumns []string

	// AmountColumns are rounded to two decimals.
	AmountColumns []string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a workbook. Row.Line is the spreadsheet row number.
func Parse(path string, settings Settings) (*csvparser.CSVData, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := settings.Sheet
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoSheet, sheetName)
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	headerRow := settings.HeaderRow
	if headerRow < 1 {
		headerRow = 1
	}
	if len(rows) < headerRow {
		return nil, csvparser.ErrEmpty
	}

	headers := cleanHeaders(rows[headerRow-1])
	dateColumn := make(map[string]bool, len(settings.DateColumns))
	for _, c := range settings.DateColumns {
		dateColumn[c] = true
	}
	amountColumn := make(map[string]bool, len(settings.AmountColumns))
	for _, c := range settings.AmountColumns {
		amountColumn[c] = true
	}

	data := &csvparser.CSVData{Headers: headers, SourceFile: path}
	for i := headerRow; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}

		fields := make(map[string]string, len(headers))
		for j, h := range headers {
			value := ""
			if j < len(row) {
				value = strings.TrimSpace(row[j])
			}
			switch {
			case dateColumn[h]:
				value = serialToTime(value, date1904)
			case amountColumn[h]:
				value = roundAmount(value)
			}
			fields[h] = value
		}
		data.Rows = append(data.Rows, csvparser.Row{Line: i + 1, Fields: fields})
	}

	return data, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// serialToTime renders an Excel serial date. Anything else is returned as is.
func serialToTime(value string, date1904 bool) string {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return value
	}
	return t.Round(time.Second).Format(TimeLayout)
}

// roundAmount rounds a numeric cell to two decimals. Text is returned as is
// and left to the amount parser to reject.
func roundAmount(value string) string {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return value
	}
	return d.Round(2).String()
}

func cleanHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		out[i] = h
	}
	return out
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
