package batch

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/nexgsol/hmva/internal/models"
)

func readArtifactRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to open artifact: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	return rows
}

func TestCreateArtifactHeaderOnly(t *testing.T) {
	c := NewCollector(nil)
	path := filepath.Join(t.TempDir(), "results.xlsx")

	if err := c.CreateArtifact(path); err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}

	rows := readArtifactRows(t, path)
	if len(rows) != 1 {
		t.Fatalf("expected header-only artifact, got %d rows", len(rows))
	}
	want := []string{"row", "icon", "category", "notes", "paragraph", "ssml"}
	for i, col := range want {
		if rows[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}
}

func TestCollectSortsByRowNumber(t *testing.T) {
	c := NewCollector(nil)
	path := filepath.Join(t.TempDir(), "results.xlsx")
	if err := c.CreateArtifact(path); err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}

	job := &models.JobRun{JobID: uuid.New(), Mode: models.JobModeLocalFile, OutputPath: path}
	results := []models.RowResult{
		{Number: 7, Icon: "C"},
		{Number: 2, Icon: "A"},
		{Number: 5, Icon: "B"},
	}
	if err := c.Collect(context.Background(), job, results); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	rows := readArtifactRows(t, path)
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	wantOrder := []string{"2", "5", "7"}
	for i, want := range wantOrder {
		if rows[i+1][0] != want {
			t.Errorf("data row %d has source row %q, want %q", i, rows[i+1][0], want)
		}
	}
}

// Concurrent batch completions must serialize on the artifact: header stays
// single and every appended row survives.
func TestCollectConcurrentAppends(t *testing.T) {
	c := NewCollector(nil)
	path := filepath.Join(t.TempDir(), "results.xlsx")
	if err := c.CreateArtifact(path); err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}

	job := &models.JobRun{JobID: uuid.New(), Mode: models.JobModeLocalFile, OutputPath: path}

	const batches = 8
	const perBatch = 5

	var wg sync.WaitGroup
	for b := 0; b < batches; b++ {
		b := b
		wg.Add(1)
		go func() {
			defer wg.Done()
			results := make([]models.RowResult, 0, perBatch)
			for i := 0; i < perBatch; i++ {
				results = append(results, models.RowResult{
					Number: 2 + b*perBatch + i,
					Icon:   "icon-" + strconv.Itoa(b),
				})
			}
			if err := c.Collect(context.Background(), job, results); err != nil {
				t.Errorf("Collect failed: %v", err)
			}
		}()
	}
	wg.Wait()

	rows := readArtifactRows(t, path)
	if len(rows) != 1+batches*perBatch {
		t.Fatalf("expected %d rows, got %d", 1+batches*perBatch, len(rows))
	}

	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		if row[0] == "row" {
			t.Fatal("header row duplicated into data")
		}
		if seen[row[0]] {
			t.Fatalf("source row %s written twice", row[0])
		}
		seen[row[0]] = true
	}
	if len(seen) != batches*perBatch {
		t.Errorf("expected %d distinct rows, got %d", batches*perBatch, len(seen))
	}
}

type recordingSheetWriter struct {
	mu      sync.Mutex
	batches [][]models.RowResult
	err     error
}

func (r *recordingSheetWriter) WriteBack(ctx context.Context, sheetID, sheetName string, results []models.RowResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, results)
	return r.err
}

func TestCollectWriteBackErrorIsSwallowed(t *testing.T) {
	writer := &recordingSheetWriter{err: context.DeadlineExceeded}
	c := NewCollector(writer)
	path := filepath.Join(t.TempDir(), "results.xlsx")
	if err := c.CreateArtifact(path); err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}

	job := &models.JobRun{
		JobID:      uuid.New(),
		Mode:       models.JobModeRemoteSheet,
		SheetID:    "sheet-1",
		OutputPath: path,
	}
	err := c.Collect(context.Background(), job, []models.RowResult{{Number: 2, Icon: "A"}})
	if err != nil {
		t.Fatalf("write-back failure must not fail the collect: %v", err)
	}
	if len(writer.batches) != 1 {
		t.Fatalf("expected one write-back attempt, got %d", len(writer.batches))
	}
}

func TestCollectSkipsWriteBackForLocalJobs(t *testing.T) {
	writer := &recordingSheetWriter{}
	c := NewCollector(writer)
	path := filepath.Join(t.TempDir(), "results.xlsx")
	if err := c.CreateArtifact(path); err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}

	job := &models.JobRun{JobID: uuid.New(), Mode: models.JobModeLocalFile, OutputPath: path}
	if err := c.Collect(context.Background(), job, []models.RowResult{{Number: 2}}); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(writer.batches) != 0 {
		t.Error("local jobs must not trigger sheet write-back")
	}
}
