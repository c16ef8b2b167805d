package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nexgsol/hmva/internal/models"
)

// ConfigError marks input problems that no retry can fix (missing file,
// unreachable sheet, unresolvable header). Callers fail the job immediately
// instead of retrying.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// Descriptor says where the rows live.
type Descriptor struct {
	Mode      models.JobMode
	Path      string // local XLSX path (ModeLocalFile)
	SheetURL  string // Google Sheets URL (ModeRemoteSheet)
	SheetName string // optional sheet/tab name
}

// RowIterator streams rows one at a time. Next returns ok=false when the
// source is exhausted. Close releases the underlying file or response body.
type RowIterator interface {
	Next() (models.Row, bool, error)
	Close() error
}

// Column aliases, matched after canon() folding. A header resolves the first
// alias it matches; resolution fails only when no icon column exists at all.
var (
	iconAliases     = []string{"icon name", "icon", "name"}
	categoryAliases = []string{"category", "type"}
	notesAliases    = []string{"notes", "note", "description"}
)

// canon folds a header cell for alias comparison: lowercase, trimmed,
// underscores and hyphens treated as spaces, runs of spaces collapsed.
func canon(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

type columnMap struct {
	icon     int
	category int
	notes    int
}

func resolveColumns(header []string) (columnMap, error) {
	cm := columnMap{icon: -1, category: -1, notes: -1}
	for i, cell := range header {
		c := canon(cell)
		if cm.icon < 0 && contains(iconAliases, c) {
			cm.icon = i
		}
		if cm.category < 0 && contains(categoryAliases, c) {
			cm.category = i
		}
		if cm.notes < 0 && contains(notesAliases, c) {
			cm.notes = i
		}
	}
	if cm.icon < 0 {
		return cm, configErrorf("no icon column found in header %v (accepted: %s)",
			header, strings.Join(iconAliases, ", "))
	}
	return cm, nil
}

func contains(aliases []string, s string) bool {
	for _, a := range aliases {
		if a == s {
			return true
		}
	}
	return false
}

func cellAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// Open builds a row iterator for the descriptor. The returned iterator skips
// rows whose icon cell is empty; row numbers are 1-based source positions, so
// the first data row is 2.
func Open(ctx context.Context, desc Descriptor, client *http.Client) (RowIterator, error) {
	switch desc.Mode {
	case models.JobModeLocalFile:
		return openLocal(desc.Path, desc.SheetName)
	case models.JobModeRemoteSheet:
		return openRemote(ctx, desc.SheetURL, client)
	default:
		return nil, configErrorf("unknown source mode %q", desc.Mode)
	}
}

// --- local XLSX ---

type xlsxIterator struct {
	file    *excelize.File
	rows    *excelize.Rows
	columns columnMap
	rowNum  int
}

func openLocal(path, sheetName string) (RowIterator, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, configErrorf("failed to open workbook %s: %v", path, err)
	}

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}

	rows, err := f.Rows(sheetName)
	if err != nil {
		f.Close()
		return nil, configErrorf("failed to read sheet %q: %v", sheetName, err)
	}

	if !rows.Next() {
		rows.Close()
		f.Close()
		return nil, configErrorf("sheet %q is empty", sheetName)
	}
	header, err := rows.Columns()
	if err != nil {
		rows.Close()
		f.Close()
		return nil, configErrorf("failed to read header row: %v", err)
	}

	cm, err := resolveColumns(header)
	if err != nil {
		rows.Close()
		f.Close()
		return nil, err
	}

	return &xlsxIterator{file: f, rows: rows, columns: cm, rowNum: 1}, nil
}

func (it *xlsxIterator) Next() (models.Row, bool, error) {
	for it.rows.Next() {
		it.rowNum++
		record, err := it.rows.Columns()
		if err != nil {
			return models.Row{}, false, fmt.Errorf("failed to read row %d: %w", it.rowNum, err)
		}
		icon := cellAt(record, it.columns.icon)
		if icon == "" {
			continue
		}
		return models.Row{
			Number:   it.rowNum,
			Icon:     icon,
			Category: cellAt(record, it.columns.category),
			Notes:    cellAt(record, it.columns.notes),
		}, true, nil
	}
	return models.Row{}, false, it.rows.Error()
}

func (it *xlsxIterator) Close() error {
	it.rows.Close()
	return it.file.Close()
}

// --- remote published sheet ---

var sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
var sheetGIDPattern = regexp.MustCompile(`[#?&]gid=(\d+)`)

// ExportCSVURL turns a Google Sheets URL into its CSV export URL. Already-CSV
// URLs pass through unchanged.
func ExportCSVURL(sheetURL string) (string, error) {
	if strings.Contains(sheetURL, "format=csv") || strings.HasSuffix(sheetURL, ".csv") {
		return sheetURL, nil
	}
	m := sheetIDPattern.FindStringSubmatch(sheetURL)
	if m == nil {
		return "", configErrorf("could not extract spreadsheet id from %q", sheetURL)
	}
	out := fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv", m[1])
	if g := sheetGIDPattern.FindStringSubmatch(sheetURL); g != nil {
		out += "&gid=" + g[1]
	}
	return out, nil
}

type csvIterator struct {
	body    io.ReadCloser
	reader  *csv.Reader
	columns columnMap
	rowNum  int
}

func openRemote(ctx context.Context, sheetURL string, client *http.Client) (RowIterator, error) {
	if client == nil {
		client = http.DefaultClient
	}

	csvURL, err := ExportCSVURL(sheetURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", csvURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, configErrorf("failed to fetch sheet: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, configErrorf("sheet fetch returned status %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		resp.Body.Close()
		if err == io.EOF {
			return nil, configErrorf("sheet export is empty")
		}
		return nil, configErrorf("failed to read sheet header: %v", err)
	}

	cm, err := resolveColumns(header)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	return &csvIterator{body: resp.Body, reader: reader, columns: cm, rowNum: 1}, nil
}

func (it *csvIterator) Next() (models.Row, bool, error) {
	for {
		record, err := it.reader.Read()
		if err == io.EOF {
			return models.Row{}, false, nil
		}
		if err != nil {
			return models.Row{}, false, fmt.Errorf("failed to read row %d: %w", it.rowNum+1, err)
		}
		it.rowNum++
		icon := cellAt(record, it.columns.icon)
		if icon == "" {
			continue
		}
		return models.Row{
			Number:   it.rowNum,
			Icon:     icon,
			Category: cellAt(record, it.columns.category),
			Notes:    cellAt(record, it.columns.notes),
		}, true, nil
	}
}

func (it *csvIterator) Close() error {
	return it.body.Close()
}
