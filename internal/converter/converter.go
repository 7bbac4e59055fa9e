// =============================================================================
// mpledger - Converter Module
// =============================================================================
//
// This module runs one conversion from a MobilePay export to journal rows and
// appendices.
//
// CONVERSION PIPELINE:
//   1. Parse the export, CSV or XLSX by file extension
//   2. Decode rows into chronological events for the configured MyShop number
//   3. Fold events into settlement batches, classifying registrations
//   4. Derive the journal rows of every batch
//   5. Audit batches and rows; a failed audit stops the run
//   6. Write the journal CSV
//   7. Write the appendix PDFs and the workbook
//   8. Write the run summary
//
// Nothing is written unless steps 1-5 succeed. When writing fails in step 6
// or 7, the files already written by the run are removed again. The summary
// of step 8 is informational and does not fail the run.
//
// =============================================================================

package converter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/fklub/mpledger/internal/batch"
	"github.com/fklub/mpledger/internal/calendar"
	"github.com/fklub/mpledger/internal/config"
	"github.com/fklub/mpledger/internal/csvparser"
	"github.com/fklub/mpledger/internal/gateway"
	"github.com/fklub/mpledger/internal/ledger"
	"github.com/fklub/mpledger/internal/ledgerwriter"
	"github.com/fklub/mpledger/internal/money"
	"github.com/fklub/mpledger/internal/registration"
	"github.com/fklub/mpledger/internal/report"
	"github.com/fklub/mpledger/internal/validation"
	"github.com/fklub/mpledger/internal/xlsxparser"
	"github.com/fklub/mpledger/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of one conversion.
type Result struct {
	// RunID identifies the run in logs, report metadata and the summary.
	RunID string

	// FilePath is the MobilePay export that was read.
	FilePath string

	// JournalFile is the journal CSV. Empty when nothing was written.
	JournalFile string

	// PDFDir holds one PDF per appendix when PDF output is enabled.
	PDFDir string

	WorkbookFile string
	SummaryFile  string

	// OutputFiles lists every file written, in order.
	OutputFiles []string

	Batches  []*batch.Batch
	Entries  []ledger.Entry
	Warnings []batch.Warning

	// Validation is the audit of batches and rows.
	Validation *validation.ValidationResult

	// Success indicates whether the run finished. A run without batches is
	// successful but writes nothing.
	Success bool

	// Error contains the error if the run failed.
	Error error

	Stats ProcessingStats
}

// ProcessingStats contains statistics about the run.
type ProcessingStats struct {
	// RowsRead is the number of data rows in the export.
	RowsRead int

	// RowsHandled counts payments, refunds and service fees for the
	// configured MyShop number.
	RowsHandled int

	// RowsSkipped counts rows for other MyShop numbers.
	RowsSkipped int

	Events        int
	Batches       int
	Registrations int
	Entries       int
	Warnings      int

	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Logger is the logging interface the converter writes to. *log.Logger from
// charmbracelet/log satisfies it.
type Logger interface {
	Debug(msg interface{}, keyvals ...interface{})
	Info(msg interface{}, keyvals ...interface{})
	Warn(msg interface{}, keyvals ...interface{})
	Error(msg interface{}, keyvals ...interface{})
}

// Converter converts one MobilePay export.
type Converter struct {
	inputPath     string
	firstAppendix int
	cfg           *config.Config

	logger Logger
	now    func() time.Time
	runID  string
}

// New creates a converter for the export at inputPath, numbering appendices
// from firstAppendix. cfg must have been validated.
func New(inputPath string, firstAppendix int, cfg *config.Config) *Converter {
	return &Converter{
		inputPath:     inputPath,
		firstAppendix: firstAppendix,
		cfg:           cfg,
		logger:        log.New(os.Stderr),
		now:           time.Now,
		runID:         uuid.New().String(),
	}
}

// SetLogger replaces the default logger.
func (c *Converter) SetLogger(logger Logger) {
	c.logger = logger
}

// SetClock replaces the clock used for timestamps.
func (c *Converter) SetClock(now func() time.Time) {
	c.now = now
}

// RunID identifies this run.
func (c *Converter) RunID() string {
	return c.runID
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion pipeline.
func (c *Converter) Run() Result {
	startTime := c.now()
	result := Result{
		RunID:    c.runID,
		FilePath: c.inputPath,
	}
	profile := ledger.Profile(c.cfg.Ledger.Profile)

	c.logger.Info("Processing file", "file", c.inputPath, "merchant", c.cfg.Gateway.MerchantNumber,
		"profile", profile, "run", c.runID)

	// =========================================================================
	// STEP 1: PARSE EXPORT
	// =========================================================================

	data, format, err := c.parse()
	if err != nil {
		return c.fail(result, fmt.Errorf("failed to parse export: %w", err))
	}
	result.Stats.RowsRead = len(data.Rows)
	c.logger.Debug("Parsed export", "rows", len(data.Rows), "columns", len(data.Headers))

	// =========================================================================
	// STEP 2: DECODE EVENTS
	// =========================================================================

	decoded, err := gateway.Decode(data, gateway.Options{
		MerchantNumber: c.cfg.Gateway.MerchantNumber,
		AmountStyle:    format.amountStyle,
		DateLayouts:    format.dateLayouts,
		Location:       c.cfg.Location(),
	})
	if err != nil {
		return c.fail(result, fmt.Errorf("failed to decode export: %w", err))
	}
	result.Stats.RowsHandled = decoded.Handled
	result.Stats.RowsSkipped = decoded.Skipped
	result.Stats.Events = len(decoded.Events)
	c.logger.Info("Decoded export", "handled", decoded.Handled, "skipped", decoded.Skipped)

	// =========================================================================
	// STEP 3: ACCUMULATE BATCHES
	// =========================================================================

	classifier := registration.NewClassifier(c.cfg.Registration.Keywords,
		c.cfg.Registration.MaxEditDistance, c.cfg.RegistrationFee())

	var extra []calendar.Rule
	if closures := c.cfg.ExtraClosures(); len(closures) > 0 {
		extra = append(extra, calendar.Dates("Banklukkedag", closures...))
	}

	acc, err := batch.Accumulate(decoded.Events, classifier, calendar.NewDanishBank(extra...),
		batch.Options{RegistrationFee: c.cfg.RegistrationFee()})
	if err != nil {
		return c.fail(result, fmt.Errorf("failed to accumulate batches: %w", err))
	}

	result.Batches = acc.Batches
	result.Warnings = acc.Warnings
	result.Stats.Batches = len(acc.Batches)
	result.Stats.Registrations = acc.Stats.Registrations
	result.Stats.Warnings = len(acc.Warnings)

	for _, w := range acc.Warnings {
		c.logger.Warn(w.Text, "line", w.Line, "time", w.Time.Format("2006-01-02 15:04"),
			"amount", w.Amount.Format(c.cfg.AmountStyle()), "message", w.Message)
	}

	if len(acc.Batches) == 0 {
		c.logger.Warn("No valid transactions, nothing to be done")
		result.Success = true
		result.Stats.ProcessingTime = c.now().Sub(startTime)
		return result
	}

	// =========================================================================
	// STEP 4: DERIVE JOURNAL ROWS
	// =========================================================================

	deriver := &ledger.Deriver{
		Profile:     profile,
		Accounts:    c.cfg.Accounts(),
		VoucherRows: ledger.VoucherPolicy(c.cfg.Ledger.VoucherRows),
	}
	entries, err := deriver.DeriveAll(c.firstAppendix, acc.Batches)
	if err != nil {
		return c.fail(result, fmt.Errorf("failed to derive journal rows: %w", err))
	}
	result.Entries = entries
	result.Stats.Entries = len(entries)

	// =========================================================================
	// STEP 5: AUDIT
	// =========================================================================

	audit := validation.NewValidator().ValidateAll(c.firstAppendix, acc.Batches, entries)
	result.Validation = audit
	for _, finding := range audit.Errors {
		if finding.Severity == validation.SeverityError {
			c.logger.Error(finding.Message, "appendix", finding.Appendix, "check", finding.Check)
		} else {
			c.logger.Warn(finding.Message, "appendix", finding.Appendix, "check", finding.Check)
		}
	}
	if !audit.IsValid {
		return c.fail(result, fmt.Errorf("audit failed with %d error(s): %w", audit.ErrorCount, audit.Err()))
	}

	// =========================================================================
	// STEP 6: WRITE JOURNAL
	// =========================================================================

	fm := utils.NewFileManager(c.cfg.Output.Directory, c.firstAppendix, len(acc.Batches))
	pdfEnabled := c.cfg.HasReportFormat("pdf")
	if err := fm.EnsureDirectories(pdfEnabled); err != nil {
		return c.fail(result, err)
	}

	if err := ledgerwriter.WriteFile(fm.JournalPath(), entries, ledgerwriter.DefaultGenerateOptions()); err != nil {
		return c.abort(result, err)
	}
	result.JournalFile = fm.JournalPath()
	result.OutputFiles = append(result.OutputFiles, fm.JournalPath())
	c.logger.Info("Done writing journal", "file", fm.JournalPath(), "rows", len(entries))

	if audit.WarningCount > 0 {
		logPath := filepath.Join(fm.OutputDir, fm.Range()+"_validation.log")
		if err := validation.WriteErrorLog(audit.Errors, logPath); err != nil {
			c.logger.Warn("Failed to write validation log", "err", err)
		} else {
			result.OutputFiles = append(result.OutputFiles, logPath)
		}
	}

	// =========================================================================
	// STEP 7: WRITE APPENDICES
	// =========================================================================

	opts := c.reportOptions(profile)
	appendices, err := report.FromBatches(c.firstAppendix, acc.Batches, opts)
	if err != nil {
		return c.abort(result, err)
	}

	if pdfEnabled {
		renderer := report.NewPDFRenderer(opts)
		renderer.Now = c.now
		for _, a := range appendices {
			path := fm.PDFPath(a.Ordinal)
			if err := renderer.WriteFile(path, a); err != nil {
				return c.abort(result, err)
			}
			result.OutputFiles = append(result.OutputFiles, path)
		}
		result.PDFDir = fm.PDFDir()
		c.logger.Info("Done creating PDFs", "count", len(appendices), "dir", fm.PDFDir())
	}

	if c.cfg.HasReportFormat("xlsx") {
		if err := report.NewWorkbook(opts).WriteFile(fm.WorkbookPath(), appendices); err != nil {
			return c.abort(result, err)
		}
		result.WorkbookFile = fm.WorkbookPath()
		result.OutputFiles = append(result.OutputFiles, fm.WorkbookPath())
		c.logger.Info("Done writing workbook", "file", fm.WorkbookPath())
	}

	// =========================================================================
	// STEP 8: SUMMARY
	// =========================================================================

	result.Success = true
	result.Stats.ProcessingTime = c.now().Sub(startTime)

	if c.cfg.Output.SummaryLog {
		path, err := utils.WriteSummaryLog(c.summary(result, startTime), fm.OutputDir)
		if err != nil {
			// The journal is already written; the summary is informational.
			c.logger.Warn("Failed to write summary", "err", err)
		} else {
			result.SummaryFile = path
		}
	}

	return result
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (c *Converter) fail(result Result, err error) Result {
	c.logger.Error("Conversion failed", "file", c.inputPath, "err", err)
	result.Error = err
	return result
}

// abort removes the files written so far and fails the run.
func (c *Converter) abort(result Result, err error) Result {
	for _, path := range result.OutputFiles {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			c.logger.Warn("Failed to remove partial output", "file", path, "err", rmErr)
		}
	}
	if len(result.OutputFiles) > 0 {
		c.logger.Warn("Removed partial output", "files", len(result.OutputFiles))
	}

	result.OutputFiles = nil
	result.JournalFile = ""
	result.PDFDir = ""
	result.WorkbookFile = ""
	return c.fail(result, err)
}

// inputFormat is how the decoder reads the values of one export format.
type inputFormat struct {
	amountStyle money.Style
	dateLayouts []string
}

// parse reads the export and returns how its values are written.
func (c *Converter) parse() (*csvparser.CSVData, inputFormat, error) {
	if strings.EqualFold(filepath.Ext(c.inputPath), ".xlsx") {
		data, err := xlsxparser.Parse(c.inputPath, xlsxparser.Settings{
			HeaderRow:     c.cfg.Gateway.HeaderRow,
			DateColumns:   []string{gateway.ColumnTime},
			AmountColumns: []string{gateway.ColumnAmount},
		})
		// Date cells are rendered in TimeLayout; text cells may use any
		// configured layout.
		layouts := append([]string{xlsxparser.TimeLayout}, c.cfg.Gateway.DateLayouts...)
		return data, inputFormat{amountStyle: xlsxparser.AmountStyle, dateLayouts: layouts}, err
	}

	data, err := csvparser.Parse(c.inputPath, csvparser.Settings{
		Delimiter: c.cfg.Gateway.Delimiter,
		Encoding:  c.cfg.Gateway.Encoding,
		HeaderRow: c.cfg.Gateway.HeaderRow,
	})
	return data, inputFormat{amountStyle: c.cfg.AmountStyle(), dateLayouts: c.cfg.Gateway.DateLayouts}, err
}

func (c *Converter) reportOptions(profile ledger.Profile) report.Options {
	title := c.cfg.Report.Title
	if profile == ledger.ProfileSales {
		title = c.cfg.Report.SalesTitle
	}
	return report.Options{
		Layout:       profile,
		Title:        title,
		Organisation: c.cfg.Report.Organisation,
		VATPercent:   c.cfg.Report.VATPercent,
		RunID:        c.runID,
	}
}

func (c *Converter) summary(result Result, startTime time.Time) utils.ProcessingSummary {
	s := utils.ProcessingSummary{
		RunID:          c.runID,
		StartTime:      startTime,
		EndTime:        startTime.Add(result.Stats.ProcessingTime),
		InputFile:      c.inputPath,
		MerchantNumber: c.cfg.Gateway.MerchantNumber,
		Profile:        c.cfg.Ledger.Profile,
		RowsRead:       result.Stats.RowsRead,
		RowsHandled:    result.Stats.RowsHandled,
		RowsSkipped:    result.Stats.RowsSkipped,
		Batches:        result.Stats.Batches,
		Registrations:  result.Stats.Registrations,
		FirstAppendix:  c.firstAppendix,
		OutputFiles:    result.OutputFiles,
	}
	for _, w := range result.Warnings {
		s.Warnings = append(s.Warnings, w.String())
	}
	if result.Validation != nil {
		for _, f := range result.Validation.Errors {
			s.Findings = append(s.Findings, f.Error())
		}
	}
	return s
}
