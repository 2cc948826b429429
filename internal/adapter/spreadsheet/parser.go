// Package spreadsheet turns uploaded XLSX and CSV files into header-keyed rows.
package spreadsheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/iho/bankrecon/internal/domain"
)

// Parser errors
var (
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported file type, expected .xlsx or .csv", domain.ErrValidation)
	ErrSheetNotFound     = fmt.Errorf("%w: sheet not found", domain.ErrValidation)
	ErrHeaderRow         = fmt.Errorf("%w: header row is out of range", domain.ErrValidation)
)

// Options selects what to read. HeaderRow is 1-based; zero means the first row.
type Options struct {
	Sheet     string
	HeaderRow int
}

// Result is the parsed file. Sheets lists every sheet name in workbook order;
// a CSV file has a single unnamed sheet.
type Result struct {
	Sheets  []string
	Sheet   string
	Columns []string
	Rows    []domain.RawRow
}

// Parse reads a workbook or CSV file. The format is chosen by the file
// extension. Cells are kept as strings; dates stay as Excel serial numbers so
// the normalizer can read them without guessing a display format.
func Parse(r io.Reader, filename string, opts Options) (*Result, error) {
	if opts.HeaderRow < 0 {
		return nil, ErrHeaderRow
	}
	if opts.HeaderRow == 0 {
		opts.HeaderRow = 1
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return parseWorkbook(r, opts)
	case ".csv", ".txt":
		return parseCSV(r, opts)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func parseWorkbook(r io.Reader, opts Options) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open workbook: %v", domain.ErrValidation, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	sheet := opts.Sheet
	if sheet == "" {
		if len(sheets) == 0 {
			return nil, ErrSheetNotFound
		}
		sheet = sheets[f.GetActiveSheetIndex()]
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	columns, rows, err := toRows(grid, opts.HeaderRow)
	if err != nil {
		return nil, err
	}
	return &Result{Sheets: sheets, Sheet: sheet, Columns: columns, Rows: rows}, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func parseCSV(r io.Reader, opts Options) (*Result, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	data, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	grid, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed csv: %v", domain.ErrValidation, err)
	}

	columns, rows, err := toRows(grid, opts.HeaderRow)
	if err != nil {
		return nil, err
	}
	return &Result{Sheets: []string{""}, Columns: columns, Rows: rows}, nil
}

// detectDelimiter picks ';' when the first line has more semicolons than
// commas, as spreadsheets exported with a comma decimal separator do.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// toRows keys every row below the header by its header cell. Blank rows are
// skipped.
func toRows(grid [][]string, headerRow int) ([]string, []domain.RawRow, error) {
	if headerRow > len(grid) {
		return nil, nil, fmt.Errorf("%w: row %d of %d", ErrHeaderRow, headerRow, len(grid))
	}

	headers := headerNames(grid[headerRow-1])
	rows := []domain.RawRow{}
	for _, cells := range grid[headerRow:] {
		row := domain.RawRow{}
		blank := true
		for i, cell := range cells {
			if i >= len(headers) {
				headers = append(headers, columnName(i))
			}
			if strings.TrimSpace(cell) != "" {
				blank = false
			}
			row[headers[i]] = cell
		}
		if blank {
			continue
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

// headerNames trims header cells, names blank ones after their column letter
// and suffixes duplicates so no column is lost.
func headerNames(cells []string) []string {
	seen := make(map[string]int, len(cells))
	names := make([]string, len(cells))
	for i, cell := range cells {
		name := strings.TrimSpace(cell)
		if name == "" {
			name = columnName(i)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = name + "_" + strconv.Itoa(n+1)
		} else {
			seen[name] = 1
		}
		names[i] = name
	}
	return names
}

func columnName(i int) string {
	name, err := excelize.ColumnNumberToName(i + 1)
	if err != nil {
		return "Column" + strconv.Itoa(i+1)
	}
	return "Column " + name
}

// IsParseError reports whether err was caused by the uploaded file rather
// than by the server.
func IsParseError(err error) bool {
	return errors.Is(err, domain.ErrValidation)
}
