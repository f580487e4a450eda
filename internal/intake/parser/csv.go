package parser

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"arsenal/internal/intake/models"
	dErrors "arsenal/pkg/domain-errors"
)

const (
	ColumnSerial    = "serial"
	ColumnModelCode = "model_code"
)

// Charset names accepted for CSV uploads.
const (
	CharsetUTF8        = "utf-8"
	CharsetWindows1252 = "windows-1252"
)

func decoderFor(charset string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", CharsetUTF8, "utf8":
		return unicode.UTF8.NewDecoder(), nil
	case CharsetWindows1252, "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	}
	return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported charset: "+charset)
}

// ParseCSV reads a header row naming at least the serial column, then one
// Row per record. A leading byte order mark selects UTF-8 or UTF-16
// regardless of charset. Blank records are kept so row numbers line up with
// the file.
func ParseCSV(r io.Reader, charset string) ([]models.Row, error) {
	dec, err := decoderFor(charset)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(dec)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "csv file is empty")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "failed to read csv header")
	}
	cols, err := columns(header)
	if err != nil {
		return nil, err
	}

	var rows []models.Row
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed csv")
		}
		rows = append(rows, cols.row(rec))
	}
	return rows, nil
}

type columnIndex struct {
	serial    int
	modelCode int
}

func columns(header []string) (columnIndex, error) {
	idx := columnIndex{serial: -1, modelCode: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case ColumnSerial:
			idx.serial = i
		case ColumnModelCode:
			idx.modelCode = i
		}
	}
	if idx.serial < 0 {
		return idx, dErrors.New(dErrors.CodeInvalidInput, "header must contain a serial column")
	}
	return idx, nil
}

func (c columnIndex) row(rec []string) models.Row {
	get := func(i int) string {
		if i >= 0 && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	return models.Row{Serial: get(c.serial), ModelCode: get(c.modelCode)}
}
