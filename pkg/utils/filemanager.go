// =============================================================================
// mpledger - File Manager Utility
// =============================================================================
//
// This module decides where a run's output goes and writes the run summary.
//
// OUTPUT LAYOUT:
//   A run numbered from appendix 123 that produces 26 batches writes
//
//   <output>/123-148.csv             journal for the bookkeeping import
//   <output>/123-148/123.pdf ...     one appendix PDF per batch
//   <output>/123-148.xlsx            workbook, when enabled
//   <output>/processing_summary_<timestamp>.txt
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager places the output files of one run.
type FileManager struct {
	// OutputDir is the directory all output is written under.
	OutputDir string

	// FirstAppendix is the number of the first batch.
	FirstAppendix int

	// Count is the number of batches in the run.
	Count int
}

// NewFileManager creates a FileManager for count appendices numbered from
// firstAppendix.
func NewFileManager(outputDir string, firstAppendix, count int) *FileManager {
	if outputDir == "" {
		outputDir = "."
	}
	return &FileManager{
		OutputDir:     outputDir,
		FirstAppendix: firstAppendix,
		Count:         count,
	}
}

// AppendixRange names the inclusive range of appendix numbers, "123-148".
func AppendixRange(first, count int) string {
	return fmt.Sprintf("%d-%d", first, first+count-1)
}

// Range is the appendix range of the run.
func (fm *FileManager) Range() string {
	return AppendixRange(fm.FirstAppendix, fm.Count)
}

// JournalPath is the path of the journal CSV.
func (fm *FileManager) JournalPath() string {
	return filepath.Join(fm.OutputDir, fm.Range()+".csv")
}

// WorkbookPath is the path of the workbook.
func (fm *FileManager) WorkbookPath() string {
	return filepath.Join(fm.OutputDir, fm.Range()+".xlsx")
}

// PDFDir is the directory holding the appendix PDFs.
func (fm *FileManager) PDFDir() string {
	return filepath.Join(fm.OutputDir, fm.Range())
}

// PDFPath is the path of the PDF for one appendix.
func (fm *FileManager) PDFPath(appendix int) string {
	return filepath.Join(fm.PDFDir(), strconv.Itoa(appendix)+".pdf")
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output directory and, when withPDF is set,
// the PDF directory.
func (fm *FileManager) EnsureDirectories(withPDF bool) error {
	dirs := []string{fm.OutputDir}
	if withPDF {
		dirs = append(dirs, fm.PDFDir())
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary describes one conversion run.
type ProcessingSummary struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time

	InputFile      string
	MerchantNumber string
	Profile        string

	RowsRead      int
	RowsHandled   int
	RowsSkipped   int
	Batches       int
	Registrations int
	FirstAppendix int

	Warnings    []string
	Findings    []string
	OutputFiles []string
}

// WriteSummaryLog writes a processing summary to a file in outputDir and
// returns its path.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryFileName := fmt.Sprintf("processing_summary_%s.txt", summary.StartTime.Format("20060102_150405"))
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	appendices := "none"
	if summary.Batches > 0 {
		appendices = AppendixRange(summary.FirstAppendix, summary.Batches)
	}

	fmt.Fprintf(writer, "mpledger - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Input:          %s\n"+
		"  MyShop number:  %s\n"+
		"  Profile:        %s\n\n"+
		"Statistics:\n"+
		"  Rows Read:      %d\n"+
		"  Rows Handled:   %d\n"+
		"  Rows Skipped:   %d\n"+
		"  Batches:        %d\n"+
		"  Registrations:  %d\n"+
		"  Appendices:     %s\n\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.InputFile,
		summary.MerchantNumber,
		summary.Profile,
		summary.RowsRead,
		summary.RowsHandled,
		summary.RowsSkipped,
		summary.Batches,
		summary.Registrations,
		appendices)

	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		writer.WriteString(title + ":\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, l := range lines {
			writer.WriteString("  " + l + "\n")
		}
		writer.WriteString("\n")
	}
	section("Warnings", summary.Warnings)
	section("Validation Findings", summary.Findings)
	section("Output Files", summary.OutputFiles)

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
