package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/nexgsol/hmva/internal/models"
)

func writeWorkbook(t *testing.T, header []interface{}, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow("Sheet1", "A1", &header); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "source.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save workbook: %v", err)
	}
	return path
}

func drain(t *testing.T, it RowIterator) []models.Row {
	t.Helper()
	var out []models.Row
	for {
		row, ok, err := it.Next()
		if err != nil {
			t.Fatalf("iterator error: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, row)
	}
}

func TestLocalFileRows(t *testing.T) {
	path := writeWorkbook(t,
		[]interface{}{"Icon Name", "Category", "Notes"},
		[][]interface{}{
			{"Paul Newman", "Actor", "Daytona, denim"},
			{"Steve McQueen", "Actor", "Barbour jacket"},
		},
	)

	it, err := Open(context.Background(), Descriptor{Mode: models.JobModeLocalFile, Path: path}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer it.Close()

	rows := drain(t, it)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Number != 2 || rows[1].Number != 3 {
		t.Errorf("expected row numbers 2 and 3, got %d and %d", rows[0].Number, rows[1].Number)
	}
	if rows[0].Icon != "Paul Newman" || rows[0].Category != "Actor" || rows[0].Notes != "Daytona, denim" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
}

func TestLocalFileSkipsEmptyIcon(t *testing.T) {
	path := writeWorkbook(t,
		[]interface{}{"icon", "notes"},
		[][]interface{}{
			{"Paul Newman", "Daytona"},
			{"", "orphan notes"},
			{"Steve McQueen", "Barbour"},
		},
	)

	it, err := Open(context.Background(), Descriptor{Mode: models.JobModeLocalFile, Path: path}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer it.Close()

	rows := drain(t, it)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Skipped rows still consume their source position
	if rows[1].Number != 4 {
		t.Errorf("expected second kept row at position 4, got %d", rows[1].Number)
	}
}

func TestHeaderAliases(t *testing.T) {
	// Underscores, hyphens and case fold away before alias matching
	path := writeWorkbook(t,
		[]interface{}{"ICON_NAME", "Type", "Description"},
		[][]interface{}{{"Paul Newman", "Actor", "Daytona"}},
	)

	it, err := Open(context.Background(), Descriptor{Mode: models.JobModeLocalFile, Path: path}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer it.Close()

	rows := drain(t, it)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Category != "Actor" || rows[0].Notes != "Daytona" {
		t.Errorf("aliases did not resolve: %+v", rows[0])
	}
}

func TestMissingIconColumnIsConfigError(t *testing.T) {
	path := writeWorkbook(t,
		[]interface{}{"Person", "Notes"},
		[][]interface{}{{"Paul Newman", "Daytona"}},
	)

	_, err := Open(context.Background(), Descriptor{Mode: models.JobModeLocalFile, Path: path}, nil)
	if err == nil {
		t.Fatal("expected error for missing icon column")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %T: %v", err, err)
	}
}

func TestMissingFileIsConfigError(t *testing.T) {
	_, err := Open(context.Background(), Descriptor{Mode: models.JobModeLocalFile, Path: "/nonexistent.xlsx"}, nil)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %T: %v", err, err)
	}
}

func TestRemoteSheetRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("icon,category,notes\nPaul Newman,Actor,Daytona\n,,skipped\nSteve McQueen,Actor,Barbour\n"))
	}))
	defer srv.Close()

	it, err := Open(context.Background(), Descriptor{
		Mode:     models.JobModeRemoteSheet,
		SheetURL: srv.URL + "/export?format=csv",
	}, srv.Client())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer it.Close()

	rows := drain(t, it)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Number != 2 || rows[1].Number != 4 {
		t.Errorf("expected row numbers 2 and 4, got %d and %d", rows[0].Number, rows[1].Number)
	}
}

func TestRemoteSheetFetchFailureIsConfigError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := Open(context.Background(), Descriptor{
		Mode:     models.JobModeRemoteSheet,
		SheetURL: srv.URL + "/export?format=csv",
	}, srv.Client())
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %T: %v", err, err)
	}
}

func TestExportCSVURL(t *testing.T) {
	got, err := ExportCSVURL("https://docs.google.com/spreadsheets/d/abc123_DEF/edit#gid=42")
	if err != nil {
		t.Fatalf("ExportCSVURL failed: %v", err)
	}
	want := "https://docs.google.com/spreadsheets/d/abc123_DEF/export?format=csv&gid=42"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if _, err := ExportCSVURL("https://example.com/not-a-sheet"); err == nil {
		t.Error("expected error for non-sheet URL")
	}
}

func TestCanon(t *testing.T) {
	cases := map[string]string{
		"Icon Name":  "icon name",
		"ICON_NAME":  "icon name",
		"icon-name":  "icon name",
		"  Notes  ":  "notes",
		"Icon  Name": "icon name",
	}
	for in, want := range cases {
		if got := canon(in); got != want {
			t.Errorf("canon(%q) = %q, want %q", in, got, want)
		}
	}
}
