package batch

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/nexgsol/hmva/internal/models"
)

const resultSheet = "Sheet1"

var resultHeader = []interface{}{"row", "icon", "category", "notes", "paragraph", "ssml"}

// SheetWriter mirrors finished results back into the origin spreadsheet.
// Implementations must tolerate being a no-op.
type SheetWriter interface {
	WriteBack(ctx context.Context, sheetID, sheetName string, results []models.RowResult) error
}

// Collector owns the per-job result artifact. All appends to one job's file
// go through that job's mutex, so concurrent batch completions serialize at
// the file instead of corrupting it.
type Collector struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex

	sheets SheetWriter
}

func NewCollector(sheets SheetWriter) *Collector {
	return &Collector{
		locks:  make(map[uuid.UUID]*sync.Mutex),
		sheets: sheets,
	}
}

func (c *Collector) lockFor(jobID uuid.UUID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[jobID] = l
	}
	return l
}

// Release drops the job's lock entry once the job is finished.
func (c *Collector) Release(jobID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, jobID)
}

// CreateArtifact writes a header-only workbook at path. Called once, before
// any batch is dispatched, so even a zero-row job produces a valid artifact.
func (c *Collector) CreateArtifact(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(resultSheet, "A1", &resultHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to create artifact %s: %w", path, err)
	}
	return nil
}

// Collect sorts one batch's results by source row number and appends them to
// the job artifact. Sheets write-back failures are logged, never fatal; an
// artifact write failure is returned and fails the job.
func (c *Collector) Collect(ctx context.Context, job *models.JobRun, results []models.RowResult) error {
	if len(results) == 0 {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Number < results[j].Number
	})

	lock := c.lockFor(job.JobID)
	lock.Lock()
	err := appendRows(job.OutputPath, results)
	lock.Unlock()
	if err != nil {
		return err
	}

	if c.sheets != nil && job.Mode == models.JobModeRemoteSheet && job.SheetID != "" {
		if err := c.sheets.WriteBack(ctx, job.SheetID, job.SheetName, results); err != nil {
			log.Printf("[Collector] Sheet write-back failed for job %s: %v", job.JobID, err)
		}
	}

	return nil
}

func appendRows(path string, results []models.RowResult) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("failed to open artifact %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(resultSheet)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	next := len(rows) + 1

	for i, r := range results {
		cell := fmt.Sprintf("A%d", next+i)
		row := []interface{}{r.Number, r.Icon, r.Category, r.Notes, r.Paragraph, r.SSML}
		if err := f.SetSheetRow(resultSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to append row %d: %w", r.Number, err)
		}
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}
	return nil
}
