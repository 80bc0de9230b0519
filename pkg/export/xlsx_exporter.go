package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// Sheet is a named dataset inside a workbook.
type Sheet struct {
	Name string
	Data Dataset
}

// XLSXExporter renders datasets into workbooks.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes headers in bold on the first row followed by the dataset rows.
func (e *XLSXExporter) Render(data Dataset, sheet string) ([]byte, error) {
	return e.RenderWorkbook(Sheet{Name: sheet, Data: data})
}

// RenderWorkbook writes one worksheet per Sheet, in order.
func (e *XLSXExporter) RenderWorkbook(sheets ...Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one sheet")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, sheet := range sheets {
		name := sheet.Name
		if name == "" {
			name = defaultSheet
		}
		if i == 0 {
			if name != defaultSheet {
				if err := f.SetSheetName(defaultSheet, name); err != nil {
					return nil, fmt.Errorf("rename sheet: %w", err)
				}
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("add sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, sheet.Data, bold); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, data Dataset, headerStyle int) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("xlsx sheet %s requires at least one header", sheet)
	}
	for col, header := range data.Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("write xlsx header: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(data.Headers), 1)
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for r, row := range data.Rows {
		for col, header := range data.Headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			if err := f.SetCellValue(sheet, cell, row[header]); err != nil {
				return fmt.Errorf("write xlsx row: %w", err)
			}
		}
	}
	return nil
}

// ReadWorkbook parses every worksheet of an XLSX document into datasets keyed
// by sheet name. Headers are trimmed and lower-cased; rows keep their order
// and blank trailing cells read as empty strings.
func ReadWorkbook(src io.Reader) (map[string]Dataset, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close() //nolint:errcheck

	out := make(map[string]Dataset)
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		ds := Dataset{}
		if len(rows) == 0 {
			out[name] = ds
			continue
		}
		for _, h := range rows[0] {
			ds.Headers = append(ds.Headers, strings.ToLower(strings.TrimSpace(h)))
		}
		for _, record := range rows[1:] {
			row := make(map[string]string, len(ds.Headers))
			for i, header := range ds.Headers {
				if i < len(record) {
					row[header] = strings.TrimSpace(record[i])
				}
			}
			ds.Append(row)
		}
		out[name] = ds
	}
	return out, nil
}
