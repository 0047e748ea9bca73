package loader

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/yassinexng/datawise/internal/table"
)

type xlsxDecoder struct{}

func (xlsxDecoder) CanDecode(filename string) bool {
	return hasExt(filename, ".xlsx")
}

// Decode reads the selected sheet (the first by default). Cells past the
// header width get "Unnamed: <i>" columns.
func (xlsxDecoder) Decode(data []byte, opt Options) (*table.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &table.ParseError{Msg: "not a readable workbook", Err: err}
	}
	defer f.Close()

	sheet, err := pickSheet(f.GetSheetList(), opt)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &table.ParseError{Msg: fmt.Sprintf("read sheet %q", sheet), Err: err}
	}
	opt.logger().Debug("read sheet", zap.String("sheet", sheet), zap.Int("rows", len(rows)))
	if len(rows) == 0 {
		return nil, &table.ParseError{Line: 1, Msg: fmt.Sprintf("sheet %q is empty", sheet)}
	}
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	header := make([]string, width)
	copy(header, rows[0])
	return table.FromRecords(header, rows[1:], opt.MissingTokens)
}

func pickSheet(sheets []string, opt Options) (string, error) {
	if len(sheets) == 0 {
		return "", &table.ParseError{Msg: "workbook has no sheets"}
	}
	if opt.Sheet != "" {
		for _, s := range sheets {
			if s == opt.Sheet {
				return s, nil
			}
		}
		return "", &table.ParseError{Msg: fmt.Sprintf("sheet %q not found (have %v)", opt.Sheet, sheets)}
	}
	if opt.SheetIndex > 0 {
		if opt.SheetIndex > len(sheets) {
			return "", &table.ParseError{Msg: fmt.Sprintf("sheet index %d out of range (1-%d)", opt.SheetIndex, len(sheets))}
		}
		return sheets[opt.SheetIndex-1], nil
	}
	return sheets[0], nil
}
