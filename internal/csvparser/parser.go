// =============================================================================
// mpledger - CSV Parser Module
// =============================================================================
//
// This module reads delimited exports from the payment gateway. It handles:
//   - Different delimiters (semicolon, comma, tab, pipe)
//   - Preamble lines before the header row
//   - Different encodings (UTF-8, UTF-16, Windows-1252)
//   - Quoted fields with embedded delimiters and line breaks
//
// Every data row keeps the line number it started on in the source file, so
// later stages can point at the offending line.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEmpty is returned when the input has no header row.
var ErrEmpty = errors.New("CSV file is empty")

// =============================================================================
// SETTINGS
// =============================================================================

// Settings controls how a file is read.
type Settings struct {
	// Delimiter separates fields. Names such as "tab" or "semicolon" are
	// accepted. Default: ";"
	Delimiter string

	// Encoding of the file: "auto", "utf-8", "utf-16le", "utf-16be" or
	// "windows-1252". "auto" honours a byte order mark and falls back to
	// UTF-8. Default: "auto"
	Encoding string

	// HeaderRow is the 1-based line of the header row. Lines before it are
	// skipped. Default: 1
	HeaderRow int
}

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// Row is one data row.
type Row struct {
	// Line is the 1-based line the record starts on.
	Line int

	// Fields maps header to trimmed value.
	Fields map[string]string
}

// Get returns the value of a column, or "" when the column is missing.
func (r Row) Get(header string) string {
	return r.Fields[header]
}

// CSVData represents a parsed file.
type CSVData struct {
	Headers []string

	// Rows are the non-empty data rows in file order.
	Rows []Row

	SourceFile string
}

// HasHeader reports whether the file has a column with the given header.
func (d *CSVData) HasHeader(header string) bool {
	for _, h := range d.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// Column returns all values of a column in row order.
func (d *CSVData) Column(header string) []string {
	values := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row.Get(header)
	}
	return values
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file.
func Parse(filePath string, settings Settings) (*CSVData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := ParseReader(file, settings)
	if err != nil {
		return nil, err
	}
	data.SourceFile = filePath
	return data, nil
}

// ParseReader reads CSV data from r.
//
// PARSING PROCESS:
//  1. Decode the input to UTF-8
//  2. Skip preamble lines before the header row
//  3. Read and clean the header row
//  4. Read the data rows, recording the line each one starts on
func ParseReader(r io.Reader, settings Settings) (*CSVData, error) {
	dec, err := decoder(settings.Encoding)
	if err != nil {
		return nil, err
	}

	reader := bufio.NewReader(transform.NewReader(r, dec))

	headerRow := settings.HeaderRow
	if headerRow < 1 {
		headerRow = 1
	}
	for i := 1; i < headerRow; i++ {
		if _, err := reader.ReadString('\n'); err != nil {
			if err == io.EOF {
				return nil, ErrEmpty
			}
			return nil, fmt.Errorf("failed to skip preamble: %w", err)
		}
	}

	csvReader := csv.NewReader(reader)
	configureReader(csvReader, settings)

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	headers := cleanHeaders(header)

	// Line numbers from the csv reader are relative to the header row.
	offset := headerRow - 1

	data := &CSVData{Headers: headers}
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if isRowEmpty(record) {
			continue
		}

		line, _ := csvReader.FieldPos(0)
		fields := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				fields[h] = strings.TrimSpace(record[i])
			} else {
				fields[h] = ""
			}
		}
		data.Rows = append(data.Rows, Row{Line: line + offset, Fields: fields})
	}

	return data, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings Settings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ",", "comma":
		reader.Comma = ','
	case "", ";", "semicolon":
		reader.Comma = ';'
	default:
		reader.Comma = []rune(settings.Delimiter)[0]
	}

	// Exports sometimes carry trailing delimiters on some rows.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// decoder returns the decoder for a named encoding.
func decoder(name string) (transform.Transformer, error) {
	var enc encoding.Encoding
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "utf-8", "utf8":
		enc = unicode.UTF8BOM
	case "utf-16le":
		enc = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "utf-16be":
		enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc.NewDecoder(), nil
}

// cleanHeaders trims header values and names empty headers by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
