// Package masterlist writes and reads the xlsx workbooks the payroll team
// works from: the candidate masterlist, merged extracts and validation
// reports.
package masterlist

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	headerFill    = "4472C4"
	headerFont    = "FFFFFF"
	maxColumnWide = 50
)

// Table is one sheet of output. A table without a Header is written as
// plain rows with no styling or frozen pane.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Save writes tables to path as sheets in order.
func Save(path string, tables ...Table) error {
	f, err := build(tables)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Encode writes tables as an xlsx stream.
func Encode(w io.Writer, tables ...Table) error {
	f, err := build(tables)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func build(tables []Table) (*excelize.File, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to write")
	}
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: headerFont},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	for i, t := range tables {
		if i == 0 {
			err = f.SetSheetName("Sheet1", t.Name)
		} else {
			_, err = f.NewSheet(t.Name)
		}
		if err == nil {
			err = writeTable(f, t, style)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %q: %w", t.Name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeTable(f *excelize.File, t Table, headerStyle int) error {
	widths := map[int]int{}
	measure := func(row []any) {
		for i, v := range row {
			if v == nil {
				continue
			}
			if n := utf8.RuneCountInString(fmt.Sprint(v)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	next := 1
	if len(t.Header) > 0 {
		header := make([]any, len(t.Header))
		for i, h := range t.Header {
			header[i] = h
		}
		if err := f.SetSheetRow(t.Name, "A1", &header); err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(t.Name, "A1", last, headerStyle); err != nil {
			return err
		}
		measure(header)
		next = 2
	}

	for r, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, next+r)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(t.Name, cell, &row); err != nil {
			return err
		}
		measure(row)
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(t.Name, col, col, float64(min(w+2, maxColumnWide))); err != nil {
			return err
		}
	}

	if len(t.Header) == 0 {
		return nil
	}
	return f.SetPanes(t.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
		Selection:   []excelize.Selection{{SQRef: "A2", ActiveCell: "A2", Pane: "bottomLeft"}},
	})
}
