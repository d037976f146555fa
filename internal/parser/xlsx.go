package parser

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetParser reads the first (or configured) sheet of an XLSX workbook.
type SpreadsheetParser struct{}

func (p *SpreadsheetParser) Format() Format { return FormatXLSX }

func (p *SpreadsheetParser) Parse(ctx context.Context, data []byte, cfg Config) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet := cfg.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}

	// Raw cell values carry dates as serial numbers and amounts without
	// number formatting. Text cells still go through the text parsers.
	mapper := newRowMapper(cfg)
	textDate := mapper.date
	mapper.date = func(s string) (time.Time, error) {
		t, err := textDate(s)
		if err == nil {
			return t, nil
		}
		if serial, ferr := strconv.ParseFloat(s, 64); ferr == nil && serial > 0 {
			if t, xerr := excelize.ExcelDateToTime(serial, false); xerr == nil {
				return calendarDate(t), nil
			}
		}
		return time.Time{}, err
	}

	out := newCollector(cfg)
	start := cfg.SkipRows
	if cfg.HasHeader {
		start++
	}
	for i := start; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if blank(rows[i]) {
			continue
		}
		sheetRow := i + 1
		mapper.number = func(col Column) bool {
			return numericCell(f, sheet, col, sheetRow)
		}
		rec, err := mapper.mapRow(sheetRow, rows[i])
		if err != nil {
			out.skip(sheetRow, "%v", err)
			continue
		}
		out.add(rec)
	}
	return out.result(), nil
}

// numericCell reports whether the cell at col and row holds a number rather
// than text. Cells written without a type attribute are numbers.
func numericCell(f *excelize.File, sheet string, col Column, row int) bool {
	idx, err := col.Index()
	if err != nil {
		return false
	}
	name, err := excelize.CoordinatesToCellName(idx+1, row)
	if err != nil {
		return false
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return false
	}
	return typ == excelize.CellTypeNumber || typ == excelize.CellTypeUnset
}
