package baitocli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/baito-events/baitokit/internal/envutil"
	"github.com/baito-events/baitokit/internal/payroll"
	"github.com/baito-events/baitokit/internal/registry"
)

func writeWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Roadshow"))
	rows := [][]any{
		{"No", "Name", "IC Number", "Bank Name", "Account No", "Day", "Wages", "OT", "Total"},
		{"1", "ali bin abu", "900101-14-5678", "Maybank", "162012345678", "1", "100", "20", ""},
		{"", "", "", "", "", "1", "100", "10", "330"},
		{"2", "siti aminah", "920202-10-1234", "", "", "2", "200", "", "200"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Roadshow", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--env-file", filepath.Join(t.TempDir(), "absent.env")}, args...)
	err := ExecuteContext(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestUsageErrors(t *testing.T) {
	for name, args := range map[string][]string{
		"no command":      {},
		"unknown command": {"frobnicate"},
		"unknown flag":    {"extract", "--nope", "x.xlsx"},
		"missing args":    {"extract"},
		"too many args":   {"audit", "a.xlsx", "b.xlsx"},
		"bad log level":   {"--log-level", "loud", "audit", "a.xlsx"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := run(t, args...)
			assert.ErrorIs(t, err, ErrUsage)
		})
	}
}

func TestExtractAuditLogicImport(t *testing.T) {
	dir := t.TempDir()
	inbox := filepath.Join(dir, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	writeWorkbook(t, filepath.Join(inbox, "Baito April Payment.xlsx"))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "~$Baito April Payment.xlsx"), []byte("lock"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("x"), 0o644))

	master := filepath.Join(dir, "out", "masterlist.xlsx")
	_, err := run(t, "extract", inbox, "-o", master)
	require.NoError(t, err)
	require.FileExists(t, master)

	out, err := run(t, "audit", master)
	require.NoError(t, err)
	var report payroll.AuditReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Records)
	assert.Equal(t, 1, report.ByCode["MISSING_ACCOUNT"], "siti has no account")

	out, err = run(t, "logic", master, "--sources", inbox, "--json")
	require.NoError(t, err)
	var logic []payroll.LogicResult
	require.NoError(t, json.Unmarshal([]byte(out), &logic))
	require.Len(t, logic, 2)
	for _, r := range logic {
		assert.True(t, r.Status.Passed(), "%s: %s %v", r.Name, r.Status, r.Issues)
	}

	report2 := filepath.Join(dir, "reason.xlsx")
	_, err = run(t, "reason", master, "--sources", inbox, "-o", report2)
	require.NoError(t, err)
	assert.FileExists(t, report2)

	db := filepath.Join(dir, "data", "registry.db")
	out, err = run(t, "import", "--registry", db, filepath.Join(inbox, "Baito April Payment.xlsx"))
	require.NoError(t, err)
	var res registry.ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Inserted)

	store, err := registry.Open(db)
	require.NoError(t, err)
	defer store.Close()
	c, err := store.Get(context.Background(), "900101145678")
	require.NoError(t, err)
	assert.Equal(t, "Ali Bin Abu", c.FullName)
	assert.Equal(t, "Maybank", c.BankName)
}

func TestValidateWritesCorrectedMasterlist(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "april.xlsx"))
	master := filepath.Join(dir, "masterlist.xlsx")
	_, err := run(t, "extract", filepath.Join(dir, "april.xlsx"), "-o", master)
	require.NoError(t, err)

	_, err = run(t, "validate", master)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "masterlist_validated.xlsx"))
}

func TestExtractRejectsEmptyInbox(t *testing.T) {
	_, err := run(t, "extract", t.TempDir())
	assert.ErrorIs(t, err, ErrUsage)
}

func TestPack(t *testing.T) {
	dir := t.TempDir()
	site := filepath.Join(dir, "site")
	require.NoError(t, os.MkdirAll(site, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"), []byte("<html></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(site, "app.js.map"), []byte("{}"), 0o644))

	_, err := run(t, "pack", site, "-o", filepath.Join(dir, "site.tar.xz"), "--exclude", "*.map")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "site.tar.xz"))

	_, err = run(t, "pack", site, "-o", filepath.Join(dir, "site.rar"))
	assert.ErrorIs(t, err, ErrUsage)
}

func TestSetupWritesTokenHash(t *testing.T) {
	for _, k := range []string{"BAITO_API_TOKEN_HASH", "BAITO_API_ADDR", "BAITO_REGISTRY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	envFile := filepath.Join(t.TempDir(), ".env")
	var stdout, stderr bytes.Buffer
	err := ExecuteContext(context.Background(), []string{"--env-file", envFile, "setup"}, &stdout, &stderr)
	require.NoError(t, err)

	values, err := envutil.ReadDotEnv(envFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(values["BAITO_API_TOKEN_HASH"], "t1$"))
	assert.Contains(t, stdout.String(), "api token (shown once): ")

	err = ExecuteContext(context.Background(), []string{"--env-file", envFile, "setup"}, &stdout, &stderr)
	assert.Error(t, err, "existing env file needs --force")
}

func TestWorkbookPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xlsx", "a.xls", "~$a.xlsx", "c.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	paths, err := workbookPaths([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.xls"), filepath.Join(dir, "b.xlsx")}, paths)

	_, err = workbookPaths([]string{filepath.Join(dir, "c.csv")})
	assert.Error(t, err)
}

func TestWriteJSONToFile(t *testing.T) {
	var stdout bytes.Buffer
	a := &app{stdout: &stdout}
	path := filepath.Join(t.TempDir(), "reports", "audit.json")

	require.NoError(t, a.writeJSON(path, map[string]int{"records": 2}))
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"records": 2}`, string(data))

	err = a.writeJSON(filepath.Join(path, "nested.json"), 1)
	assert.Error(t, err, "a file used as a directory cannot be written")
}
