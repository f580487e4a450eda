package parser

import (
	"io"

	"github.com/xuri/excelize/v2"

	"arsenal/internal/intake/models"
	dErrors "arsenal/pkg/domain-errors"
)

// ParseXLSX reads the first sheet with the same header layout as ParseCSV.
func ParseXLSX(r io.Reader) ([]models.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "failed to open spreadsheet")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "spreadsheet has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "failed to read spreadsheet rows")
	}
	if len(records) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "spreadsheet is empty")
	}
	cols, err := columns(records[0])
	if err != nil {
		return nil, err
	}
	rows := make([]models.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, cols.row(rec))
	}
	return rows, nil
}
