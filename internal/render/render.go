// Package render draws worksheets as PNG images for manual review and
// vision tooling.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/baito-events/baitokit/internal/sheet"
)

var (
	borderColor = color.RGBA{0xCC, 0xCC, 0xCC, 0xFF}
	headerColor = color.RGBA{0xE8, 0xE8, 0xE8, 0xFF}
	filledColor = color.RGBA{0xFF, 0xF9, 0xE6, 0xFF}
)

const (
	maxText     = 15
	keepText    = 12
	textPadding = 5
)

// Options controls the canvas. Zero values take the defaults.
type Options struct {
	CellWidth  int
	CellHeight int
	MaxWidth   int
	MaxHeight  int
	// Scale resizes the finished image. 0 and 1 leave it alone.
	Scale float64
}

func (o Options) withDefaults() Options {
	if o.CellWidth <= 0 {
		o.CellWidth = 100
	}
	if o.CellHeight <= 0 {
		o.CellHeight = 25
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = 3000
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = 5000
	}
	return o
}

// Stats summarises a batch run.
type Stats struct {
	Files  int      `json:"files"`
	Sheets int      `json:"sheets"`
	Images []string `json:"images"`
	Errors []string `json:"errors,omitempty"`
}

// Sheet draws s. ok is false for a sheet with no cells.
func Sheet(s *sheet.Sheet, opts Options) (img image.Image, ok bool) {
	opts = opts.withDefaults()
	cols, rows := s.Width(), len(s.Rows)
	if cols == 0 || rows == 0 {
		return nil, false
	}

	width := min(cols*opts.CellWidth, opts.MaxWidth)
	height := min(rows*opts.CellHeight, opts.MaxHeight)
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	stddraw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, stddraw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: canvas, Src: image.Black, Face: face}
	ascent := face.Metrics().Ascent.Ceil()

	for r := 0; r < rows; r++ {
		y := r * opts.CellHeight
		if y >= height {
			break
		}
		for c := 0; c < cols; c++ {
			x := c * opts.CellWidth
			if x >= width {
				break
			}
			cell := image.Rect(x, y, x+opts.CellWidth, y+opts.CellHeight)
			outline(canvas, cell, borderColor)

			value := sheet.Cell(s.Rows[r], c)
			if value == "" {
				continue
			}
			inner := image.Rect(x+1, y+1, x+opts.CellWidth-1, y+opts.CellHeight-1)
			if r == 0 {
				fill(canvas, inner, headerColor)
			}
			if _, filled := s.Fill(r, c); filled {
				fill(canvas, inner, filledColor)
			}

			text := truncate(value)
			dot := fixed.P(x+textPadding, y+textPadding+ascent)
			drawer.Dot = dot
			drawer.DrawString(text)
			if r == 0 {
				// basicfont has no bold face; a one-pixel overstrike stands in.
				drawer.Dot = dot.Add(fixed.P(1, 0))
				drawer.DrawString(text)
			}
		}
	}

	if opts.Scale > 0 && opts.Scale != 1 {
		return scale(canvas, opts.Scale), true
	}
	return canvas, true
}

func scale(src *image.RGBA, factor float64) image.Image {
	w := max(1, int(float64(src.Bounds().Dx())*factor))
	h := max(1, int(float64(src.Bounds().Dy())*factor))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

func fill(dst *image.RGBA, r image.Rectangle, c color.Color) {
	stddraw.Draw(dst, r, image.NewUniform(c), image.Point{}, stddraw.Src)
}

func outline(dst *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		dst.Set(x, r.Min.Y, c)
		dst.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dst.Set(r.Min.X, y, c)
		dst.Set(r.Max.X-1, y, c)
	}
}

func truncate(v string) string {
	if utf8.RuneCountInString(v) <= maxText {
		return v
	}
	return string([]rune(v)[:keepText]) + "..."
}

// ImageName is the PNG name for a sheet: "<base>_<sheet>.png" with
// slashes and spaces replaced.
func ImageName(workbook, sheetName string) string {
	base := strings.TrimSuffix(filepath.Base(workbook), filepath.Ext(workbook))
	safe := strings.NewReplacer("/", "_", " ", "_").Replace(sheetName)
	return base + "_" + safe + ".png"
}

// Files renders every sheet of every workbook into outDir. Unreadable
// workbooks and failed sheets are counted in Stats.Errors.
func Files(ctx context.Context, paths []string, outDir string, opts Options, log zerolog.Logger) (Stats, error) {
	var stats Stats
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return stats, fmt.Errorf("create output dir: %w", err)
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		wb, err := sheet.Open(path)
		if err != nil {
			log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("skipping workbook")
			stats.Errors = append(stats.Errors, fmt.Sprintf("file %s: %v", filepath.Base(path), err))
			continue
		}
		for _, s := range wb.Sheets {
			img, ok := Sheet(s, opts)
			if !ok {
				log.Debug().Str("file", wb.Name).Str("sheet", s.Name).Msg("empty sheet")
				continue
			}
			out := filepath.Join(outDir, ImageName(wb.Name, s.Name))
			if err := writePNG(out, img); err != nil {
				log.Warn().Err(err).Str("sheet", s.Name).Msg("sheet not rendered")
				stats.Errors = append(stats.Errors, fmt.Sprintf("sheet %q in %s: %v", s.Name, wb.Name, err))
				continue
			}
			stats.Sheets++
			stats.Images = append(stats.Images, out)
			log.Info().Str("image", filepath.Base(out)).Msg("rendered")
		}
		stats.Files++
	}
	return stats, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
