package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/nexgsol/hmva/internal/models"
)

// --- fakes ---

type sliceIterator struct {
	rows []models.Row
	pos  int
}

func (it *sliceIterator) Next() (models.Row, bool, error) {
	if it.pos >= len(it.rows) {
		return models.Row{}, false, nil
	}
	row := it.rows[it.pos]
	it.pos++
	return row, true, nil
}

func (it *sliceIterator) Close() error { return nil }

type fakeProcessor struct {
	failRows map[int]bool
}

func (p *fakeProcessor) ProcessRow(ctx context.Context, row models.Row) (models.RowResult, error) {
	if p.failRows[row.Number] {
		return models.RowResult{}, fmt.Errorf("vendor exhausted retries")
	}
	return models.RowResult{
		Number:    row.Number,
		Icon:      row.Icon,
		Category:  row.Category,
		Notes:     row.Notes,
		Paragraph: "About " + row.Icon + ".",
		SSML:      "<speak>About " + row.Icon + ".</speak>",
	}, nil
}

type fakeCollector struct {
	mu       sync.Mutex
	batches  [][]models.RowResult
	failNext bool
}

func (c *fakeCollector) Collect(ctx context.Context, job *models.JobRun, results []models.RowResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		return fmt.Errorf("disk full")
	}
	c.batches = append(c.batches, results)
	return nil
}

func (c *fakeCollector) Release(jobID uuid.UUID) {}

func (c *fakeCollector) allRows() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int
	for _, b := range c.batches {
		for _, r := range b {
			out = append(out, r.Number)
		}
	}
	sort.Ints(out)
	return out
}

type fakeStore struct {
	mu          sync.Mutex
	states      []models.JobState
	lastError   string
	batchCount  int
	rowsWritten int
}

func (s *fakeStore) SetJobState(ctx context.Context, id uuid.UUID, state models.JobState, errMsg, outputPath, downloadURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
	if errMsg != "" {
		s.lastError = errMsg
	}
	return nil
}

func (s *fakeStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, batches int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if batches > s.batchCount {
		s.batchCount = batches
	}
	return nil
}

func (s *fakeStore) AddRowsWritten(ctx context.Context, id uuid.UUID, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowsWritten += n
	return nil
}

func (s *fakeStore) finalState(t *testing.T) models.JobState {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		t.Fatal("no state transitions recorded")
	}
	return s.states[len(s.states)-1]
}

func makeRows(n int) []models.Row {
	rows := make([]models.Row, n)
	for i := range rows {
		rows[i] = models.Row{Number: i + 2, Icon: fmt.Sprintf("icon-%d", i)}
	}
	return rows
}

func runJob(t *testing.T, rows []models.Row, batchSize int, proc RowProcessor, coll ResultCollector, store *fakeStore) *models.JobRun {
	t.Helper()
	job := &models.JobRun{
		JobID:     uuid.New(),
		State:     models.JobStatePending,
		Mode:      models.JobModeLocalFile,
		BatchSize: batchSize,
	}
	orch := NewOrchestrator(proc, coll, store, 4)
	if err := orch.Run(context.Background(), job, &sliceIterator{rows: rows}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return job
}

// --- tests ---

func TestBatchCountIsCeilOfRowsOverSize(t *testing.T) {
	cases := []struct {
		rows, size, want int
	}{
		{10, 3, 4},
		{9, 3, 3},
		{1, 25, 1},
		{25, 25, 1},
		{26, 25, 2},
	}

	for _, c := range cases {
		store := &fakeStore{}
		coll := &fakeCollector{}
		runJob(t, makeRows(c.rows), c.size, &fakeProcessor{}, coll, store)

		if store.batchCount != c.want {
			t.Errorf("%d rows / batch %d: got %d batches, want %d", c.rows, c.size, store.batchCount, c.want)
		}
		if store.finalState(t) != models.JobStateSuccess {
			t.Errorf("%d rows / batch %d: expected SUCCESS, got %s", c.rows, c.size, store.finalState(t))
		}
	}
}

func TestZeroRowsSucceedsImmediately(t *testing.T) {
	store := &fakeStore{}
	coll := &fakeCollector{}
	runJob(t, nil, 25, &fakeProcessor{}, coll, store)

	if store.finalState(t) != models.JobStateSuccess {
		t.Errorf("expected SUCCESS for empty source, got %s", store.finalState(t))
	}
	if store.batchCount != 0 {
		t.Errorf("expected 0 batches, got %d", store.batchCount)
	}
	if len(coll.batches) != 0 {
		t.Errorf("expected no collected batches, got %d", len(coll.batches))
	}
}

func TestSingleRowJob(t *testing.T) {
	store := &fakeStore{}
	coll := &fakeCollector{}
	rows := []models.Row{{Number: 2, Icon: "Paul Newman", Category: "Actor", Notes: "Daytona, denim"}}
	runJob(t, rows, 25, &fakeProcessor{}, coll, store)

	if store.finalState(t) != models.JobStateSuccess {
		t.Fatalf("expected SUCCESS, got %s", store.finalState(t))
	}
	if len(coll.batches) != 1 || len(coll.batches[0]) != 1 {
		t.Fatalf("expected one batch of one row, got %+v", coll.batches)
	}
	got := coll.batches[0][0]
	if got.Icon != "Paul Newman" || !strings.Contains(got.Paragraph, "Paul Newman") {
		t.Errorf("row content did not flow through: %+v", got)
	}
	if store.rowsWritten != 1 {
		t.Errorf("expected 1 row written, got %d", store.rowsWritten)
	}
}

// A row that keeps failing is dropped; its batch and the job still succeed.
func TestPoisonedRowDoesNotAbortBatch(t *testing.T) {
	store := &fakeStore{}
	coll := &fakeCollector{}
	proc := &fakeProcessor{failRows: map[int]bool{5: true}}
	runJob(t, makeRows(10), 3, proc, coll, store)

	if store.finalState(t) != models.JobStateSuccess {
		t.Fatalf("expected SUCCESS, got %s", store.finalState(t))
	}

	collected := coll.allRows()
	if len(collected) != 9 {
		t.Fatalf("expected 9 surviving rows, got %d: %v", len(collected), collected)
	}
	for _, n := range collected {
		if n == 5 {
			t.Error("poisoned row 5 must not be collected")
		}
	}
	if store.rowsWritten != 9 {
		t.Errorf("expected 9 rows written, got %d", store.rowsWritten)
	}
}

func TestCollectorFailureFailsJob(t *testing.T) {
	store := &fakeStore{}
	coll := &fakeCollector{failNext: true}
	runJob(t, makeRows(5), 25, &fakeProcessor{}, coll, store)

	if store.finalState(t) != models.JobStateFailure {
		t.Fatalf("expected FAILURE, got %s", store.finalState(t))
	}
	if !strings.Contains(store.lastError, "disk full") {
		t.Errorf("expected collect error recorded, got %q", store.lastError)
	}
}

func TestBatchesAreSortedWithinCollect(t *testing.T) {
	// The orchestrator preserves per-batch membership; every source row lands
	// exactly once across the collected batches.
	store := &fakeStore{}
	coll := &fakeCollector{}
	runJob(t, makeRows(20), 6, &fakeProcessor{}, coll, store)

	collected := coll.allRows()
	if len(collected) != 20 {
		t.Fatalf("expected 20 rows, got %d", len(collected))
	}
	for i, n := range collected {
		if n != i+2 {
			t.Fatalf("row set mismatch at %d: got %d", i, n)
		}
	}
}
