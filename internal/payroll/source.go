package payroll

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/baito-events/baitokit/internal/sheet"
)

var ErrSourceNotFound = errors.New("source not found")

// Source gives validators access to the sheet a record was extracted from.
type Source interface {
	Sheet(file, name string) (*sheet.Sheet, error)
}

// WorkbookSource serves sheets from a single workbook already in memory.
type WorkbookSource struct {
	Workbook *sheet.Workbook
}

func (w WorkbookSource) Sheet(file, name string) (*sheet.Sheet, error) {
	if w.Workbook == nil || (file != "" && file != w.Workbook.Name) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, file)
	}
	s, ok := w.Workbook.Sheet(name)
	if !ok {
		return nil, fmt.Errorf("%w: sheet %q in %s", ErrSourceNotFound, name, w.Workbook.Name)
	}
	return s, nil
}

// DirSource opens source workbooks from a directory on demand and keeps
// them for the life of the value.
type DirSource struct {
	Dir string

	mu    sync.Mutex
	books map[string]*sheet.Workbook
	fails map[string]error
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir, books: map[string]*sheet.Workbook{}, fails: map[string]error{}}
}

func (d *DirSource) Sheet(file, name string) (*sheet.Sheet, error) {
	wb, err := d.workbook(file)
	if err != nil {
		return nil, err
	}
	return WorkbookSource{Workbook: wb}.Sheet("", name)
}

func (d *DirSource) workbook(file string) (*sheet.Workbook, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if wb, ok := d.books[file]; ok {
		return wb, nil
	}
	if err, ok := d.fails[file]; ok {
		return nil, err
	}

	path := filepath.Join(d.Dir, filepath.Base(file))
	wb, err := sheet.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		d.fails[file] = err
		return nil, err
	}
	d.books[file] = wb
	return wb, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrSourceNotFound)
}
