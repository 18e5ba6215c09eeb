package parser

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/KaramelBytes/insightloom/internal/table"
	"github.com/extrame/xls"
)

type xlsParser struct{}

func (xlsParser) CanParse(filename string) bool {
	return hasExt(filename, ".xls")
}

// Parse reads the first sheet of a legacy BIFF workbook.
func (xlsParser) Parse(name string, content []byte) (t *table.Table, err error) {
	// The BIFF reader panics on some truncated streams.
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("corrupt xls stream: %v", r)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(content), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("first sheet is unreadable")
	}
	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheetRow(sheet, i)
		if row == nil {
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	rows = dropEmptyRows(rows)
	if len(rows) == 0 {
		return nil, errors.New("workbook has no rows")
	}
	return table.New(name, rows[0], rows[1:]), nil
}

// sheetRow returns nil for a row index the sheet has no record for; the
// reader's own accessor panics on those.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
