// Package sheet loads spreadsheet workbooks into plain string grids.
//
// Legacy .xls files are read through extrame/xls and everything in the OOXML
// family through excelize. Callers never see either library; they get a
// Workbook of named Sheets whose rows are display strings.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// Workbook is an in-memory copy of every sheet in a spreadsheet file.
type Workbook struct {
	Name   string
	Sheets []*Sheet
}

// Sheet is one worksheet. Rows are ragged: trailing empty cells are not kept.
type Sheet struct {
	Name string
	Rows [][]string
	// Fills maps {row, col} (0-based) to an RGB hex fill colour for cells
	// that carry a solid background. Only populated for OOXML workbooks.
	Fills map[[2]int]string
}

// Supported reports whether the extension of filename can be opened.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls", ".xlsx", ".xlsm":
		return true
	default:
		return false
	}
}

// Open reads the workbook at path.
func Open(path string) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return OpenReader(f, filepath.Base(path))
}

// OpenReader reads a workbook from r. filename is only used to pick the
// decoder and to name the result.
func OpenReader(r io.Reader, filename string) (*Workbook, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !Supported(filename) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	var wb *Workbook
	if ext == ".xls" {
		wb, err = readXLS(data)
	} else {
		wb, err = readXLSX(data)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	wb.Name = filepath.Base(filename)
	return wb, nil
}

// Sheet returns the sheet with the given name.
func (w *Workbook) Sheet(name string) (*Sheet, bool) {
	for _, s := range w.Sheets {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Width is the length of the widest row.
func (s *Sheet) Width() int {
	width := 0
	for _, row := range s.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// Fill returns the fill colour of a cell, if any.
func (s *Sheet) Fill(row, col int) (string, bool) {
	if s.Fills == nil {
		return "", false
	}
	c, ok := s.Fills[[2]int{row, col}]
	return c, ok
}

// Cell returns the trimmed value at idx, or "" when idx is out of range.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// RowText joins the non-empty cells of a row with single spaces.
func RowText(row []string) string {
	return joinCells(row, " ")
}

// RowTextSep is RowText with a caller-chosen separator, which keeps cell
// boundaries visible to regular expressions.
func RowTextSep(row []string, sep string) string {
	return joinCells(row, sep)
}

// Empty reports whether every cell in the row is blank.
func Empty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func joinCells(row []string, sep string) string {
	parts := make([]string, 0, len(row))
	for _, cell := range row {
		if v := strings.TrimSpace(cell); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

func readXLS(data []byte) (*Workbook, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if workbook.NumSheets() == 0 {
		return nil, errors.New("no worksheet found")
	}

	wb := &Workbook{}
	for i := 0; i < workbook.NumSheets(); i++ {
		ws := workbook.GetSheet(i)
		if ws == nil {
			continue
		}
		s := &Sheet{Name: ws.Name}
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				s.Rows = append(s.Rows, nil)
				continue
			}
			cells := make([]string, row.LastCol())
			for c := range cells {
				cells[c] = row.Col(c)
			}
			s.Rows = append(s.Rows, trimRow(cells))
		}
		s.Rows = trimTrailingRows(s.Rows)
		wb.Sheets = append(wb.Sheets, s)
	}
	return wb, nil
}

func readXLSX(data []byte) (*Workbook, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	names := file.GetSheetList()
	if len(names) == 0 {
		return nil, errors.New("no worksheet found")
	}

	wb := &Workbook{}
	for _, name := range names {
		// Raw values keep long account and IC numbers out of the
		// number formatter, which would otherwise round them.
		rows, err := file.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		s := &Sheet{Name: name, Rows: trimTrailingRows(rows)}
		s.Fills = readFills(file, name, s.Rows)
		wb.Sheets = append(wb.Sheets, s)
	}
	return wb, nil
}

func readFills(file *excelize.File, name string, rows [][]string) map[[2]int]string {
	fills := map[[2]int]string{}
	styleColors := map[int]string{}
	for r, row := range rows {
		for c := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}
			styleID, err := file.GetCellStyle(name, cell)
			if err != nil || styleID == 0 {
				continue
			}
			color, seen := styleColors[styleID]
			if !seen {
				color = solidFill(file, styleID)
				styleColors[styleID] = color
			}
			if color != "" {
				fills[[2]int{r, c}] = color
			}
		}
	}
	if len(fills) == 0 {
		return nil
	}
	return fills
}

func solidFill(file *excelize.File, styleID int) string {
	style, err := file.GetStyle(styleID)
	if err != nil || style == nil {
		return ""
	}
	if style.Fill.Type != "pattern" || style.Fill.Pattern != 1 || len(style.Fill.Color) == 0 {
		return ""
	}
	color := strings.TrimPrefix(strings.ToUpper(style.Fill.Color[0]), "#")
	if len(color) == 8 {
		color = color[2:]
	}
	if color == "" || color == "FFFFFF" {
		return ""
	}
	return color
}

func trimRow(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}

func trimTrailingRows(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && Empty(rows[end-1]) {
		end--
	}
	return rows[:end]
}
