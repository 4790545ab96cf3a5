// Package excel loads numeric tables from CSV or XLSX files into matrices.
package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"predindep/domain/core"
	"predindep/internal"
)

// Table is a header row plus raw string cells
type Table struct {
	Headers []string
	Rows    [][]string
}

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: logger}
}

// WithSheet selects the worksheet for XLSX input; the first sheet is used otherwise
func (r *DataReader) WithSheet(sheet string) *DataReader {
	r.sheet = sheet
	return r
}

// ReadTable reads the file into a Table
func (r *DataReader) ReadTable() (*Table, error) {
	r.logger.Debug("[DataReader] reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var (
		rows [][]string
		err  error
	)
	readStart := time.Now()
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Debug("[DataReader] %s read in %.2fms (%d rows)", r.fileType, float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, core.NewInsufficientDataError(strings.ToUpper(r.fileType)+" file", 2, len(rows))
	}

	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}
	return &Table{Headers: headers, Rows: rows[1:]}, nil
}

// readExcelRows reads all rows of the selected sheet
func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// readCSVRows reads all CSV records
func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// Matrix extracts the named columns, in the given order, as a rows × len(columns) matrix
func (t *Table) Matrix(columns []string) (*mat.Dense, error) {
	if len(columns) == 0 {
		return nil, core.ErrEmptyMatrix
	}

	index := make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		index[h] = i
	}
	positions := make([]int, len(columns))
	for j, name := range columns {
		pos, ok := index[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", core.ErrUnknownColumn, name)
		}
		positions[j] = pos
	}

	out := mat.NewDense(len(t.Rows), len(columns), nil)
	for i, row := range t.Rows {
		for j, pos := range positions {
			// excelize drops trailing empty cells
			cell := ""
			if pos < len(row) {
				cell = strings.TrimSpace(row[pos])
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				// row numbers are 1-based and count the header
				return nil, fmt.Errorf("%w at row %d, column %q: %q", core.ErrNonNumeric, i+2, columns[j], cell)
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// ParseColumns splits a comma-separated column list, dropping blanks
func ParseColumns(list string) []string {
	var out []string
	for _, c := range strings.Split(list, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
