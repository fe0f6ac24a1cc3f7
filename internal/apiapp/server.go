// Package apiapp serves the extraction tools over HTTP for the office
// upload page.
package apiapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/baito-events/baitokit/internal/convert"
	"github.com/baito-events/baitokit/internal/masterlist"
	"github.com/baito-events/baitokit/internal/middleware"
	"github.com/baito-events/baitokit/internal/payroll"
	"github.com/baito-events/baitokit/internal/sheet"
)

const (
	uploadField        = "workbook"
	defaultMaxUpload   = 32 << 20
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	healthPath         = "/api/health"
	shutdownGrace      = 5 * time.Second
	readHeaderDeadline = 5 * time.Second
)

var errUpload = errors.New("invalid upload")

type Config struct {
	Addr      string
	TokenHash string
	// MaxUploadBytes caps a workbook upload. Zero means 32 MiB.
	MaxUploadBytes int64
	Logger         zerolog.Logger
}

type server struct {
	maxUpload int64
	log       zerolog.Logger
}

type extractResponse struct {
	File        string                    `json:"file"`
	Month       string                    `json:"month"`
	Records     []payroll.Record          `json:"records"`
	Validations []payroll.ValidationEntry `json:"validations,omitempty"`
	Audit       payroll.AuditReport       `json:"audit"`
}

// NewHandler builds the routed, authenticated handler.
func NewHandler(cfg Config) http.Handler {
	s := &server{maxUpload: cfg.MaxUploadBytes, log: cfg.Logger}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUpload
	}

	mux := http.NewServeMux()
	mux.Handle(healthPath, http.HandlerFunc(s.health))
	mux.Handle("/api/extract", http.HandlerFunc(s.extract))
	mux.Handle("/api/masterlist", http.HandlerFunc(s.masterlist))
	mux.Handle("/api/convert", http.HandlerFunc(s.convert))

	return middleware.Chain(
		mux,
		middleware.RequestLog(cfg.Logger),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'"}),
		middleware.RequireToken(cfg.TokenHash, healthPath),
	)
}

// Run serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	if cfg.TokenHash == "" {
		return errors.New("api token hash is required (run `baito setup`)")
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg),
		ReadHeaderTimeout: readHeaderDeadline,
	}

	errCh := make(chan error, 1)
	go func() {
		cfg.Logger.Info().Str("addr", cfg.Addr).Msg("api listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) extract(w http.ResponseWriter, r *http.Request) {
	wb, month, ok := s.workbookFromRequest(w, r)
	if !ok {
		return
	}
	res, err := payroll.ExtractWorkbook(r.Context(), wb, payroll.Options{Month: month, Validate: true, Logger: s.log})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "extraction failed")
		return
	}
	payroll.SortRecords(res.Records)
	if month == "" {
		month = monthOf(res.Records)
	}
	writeJSON(w, http.StatusOK, extractResponse{
		File:        wb.Name,
		Month:       month,
		Records:     nonNil(res.Records),
		Validations: res.Validations,
		Audit:       payroll.Audit(res.Records),
	})
}

func (s *server) masterlist(w http.ResponseWriter, r *http.Request) {
	wb, month, ok := s.workbookFromRequest(w, r)
	if !ok {
		return
	}
	res, err := payroll.ExtractWorkbook(r.Context(), wb, payroll.Options{Month: month, Validate: true, Logger: s.log})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "extraction failed")
		return
	}
	if len(res.Records) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no candidates found in workbook")
		return
	}
	payroll.SortRecords(res.Records)

	var buf bytes.Buffer
	if err := masterlist.WriteTo(&buf, res.Records, res.Validations); err != nil {
		s.log.Error().Err(err).Str("file", wb.Name).Msg("masterlist not written")
		writeError(w, http.StatusInternalServerError, "unable to build masterlist")
		return
	}
	writeAttachment(w, xlsxContentType, "masterlist_"+stem(wb.Name)+".xlsx", buf.Bytes())
}

func (s *server) convert(w http.ResponseWriter, r *http.Request) {
	wb, _, ok := s.workbookFromRequest(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := convert.Zip(&buf, wb); err != nil {
		s.log.Error().Err(err).Str("file", wb.Name).Msg("csv zip not written")
		writeError(w, http.StatusInternalServerError, "unable to convert workbook")
		return
	}
	writeAttachment(w, "application/zip", stem(wb.Name)+"_csv.zip", buf.Bytes())
}

// workbookFromRequest reads the uploaded workbook and the optional month
// field. It writes the error response itself and reports ok=false.
func (s *server) workbookFromRequest(w http.ResponseWriter, r *http.Request) (*sheet.Workbook, string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, "", false
	}
	raw, name, err := parseUpload(w, r, s.maxUpload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, "", false
	}
	if !sheet.Supported(name) {
		writeError(w, http.StatusUnsupportedMediaType, "upload must be .xls, .xlsx or .xlsm")
		return nil, "", false
	}
	wb, err := sheet.OpenReader(bytes.NewReader(raw), name)
	if err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("unreadable upload")
		writeError(w, http.StatusUnprocessableEntity, "unable to read workbook")
		return nil, "", false
	}
	return wb, strings.TrimSpace(r.FormValue("month")), true
}

func parseUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(2<<20))
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, "", fmt.Errorf("%w: form could not be parsed", errUpload)
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q file is required", errUpload, uploadField)
	}
	defer file.Close()
	raw, err := io.ReadAll(io.LimitReader(file, maxBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: unable to read uploaded file", errUpload)
	}
	if len(raw) == 0 {
		return nil, "", fmt.Errorf("%w: uploaded file is empty", errUpload)
	}
	name := filepath.Base(strings.TrimSpace(header.Filename))
	if name == "." || name == "/" {
		name = uploadField + ".xlsx"
	}
	return raw, name, nil
}

func monthOf(records []payroll.Record) string {
	if len(records) == 0 {
		return ""
	}
	return records[0].Month
}

func nonNil(records []payroll.Record) []payroll.Record {
	if records == nil {
		return []payroll.Record{}
	}
	return records
}

func stem(name string) string {
	return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
