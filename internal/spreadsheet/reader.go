// Package spreadsheet extracts video links from uploaded .xlsx workbooks.
package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/iconidentify/clipbatch/internal/domain"
)

// LinkColumn is the header of the column holding one URL per row.
const LinkColumn = "video_link"

// Reader reads link lists from spreadsheets.
type Reader interface {
	Read(r io.Reader) ([]string, error)
}

// ExcelReader reads the first worksheet of an .xlsx workbook.
type ExcelReader struct{}

// NewExcelReader creates a new ExcelReader.
func NewExcelReader() *ExcelReader {
	return &ExcelReader{}
}

// Read returns the non-blank values of the video_link column in row order.
// Header cells are matched after trimming and lower-casing.
func (ExcelReader) Read(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnreadableSpreadsheet, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.ErrUnreadableSpreadsheet
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnreadableSpreadsheet, err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrMissingColumn
	}

	col := -1
	for i, header := range rows[0] {
		if strings.ToLower(strings.TrimSpace(header)) == LinkColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, domain.ErrMissingColumn
	}

	links := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		// GetRows trims trailing empty cells, so short rows are blank here.
		if col >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[col]); v != "" {
			links = append(links, v)
		}
	}

	return links, nil
}
