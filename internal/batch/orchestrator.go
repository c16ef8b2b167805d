package batch

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nexgsol/hmva/internal/models"
	"github.com/nexgsol/hmva/internal/source"
)

// RowProcessor turns one source row into a finished result.
type RowProcessor interface {
	ProcessRow(ctx context.Context, row models.Row) (models.RowResult, error)
}

// ResultCollector persists one batch of finished rows.
type ResultCollector interface {
	Collect(ctx context.Context, job *models.JobRun, results []models.RowResult) error
	Release(jobID uuid.UUID)
}

// JobStore is the slice of the job-state store the orchestrator needs.
type JobStore interface {
	SetJobState(ctx context.Context, id uuid.UUID, state models.JobState, errMsg, outputPath, downloadURL string) error
	UpdateJobProgress(ctx context.Context, id uuid.UUID, batches int) error
	AddRowsWritten(ctx context.Context, id uuid.UUID, n int) error
}

// Orchestrator drives one paragraph job end to end: stream rows, chunk,
// fan out per batch, collect, and write the terminal state only after every
// batch has finished.
type Orchestrator struct {
	processor RowProcessor
	collector ResultCollector
	store     JobStore

	maxConcurrentBatches int
}

func NewOrchestrator(processor RowProcessor, collector ResultCollector, store JobStore, maxConcurrentBatches int) *Orchestrator {
	if maxConcurrentBatches < 1 {
		maxConcurrentBatches = 1
	}
	return &Orchestrator{
		processor:            processor,
		collector:            collector,
		store:                store,
		maxConcurrentBatches: maxConcurrentBatches,
	}
}

// Run processes the job's rows and returns after the terminal state has been
// written. SUCCESS means every batch ran and its results landed in the
// artifact; a collector failure fails the whole job, a single row failing
// after retries drops only that row.
func (o *Orchestrator) Run(ctx context.Context, job *models.JobRun, rows source.RowIterator) error {
	defer o.collector.Release(job.JobID)

	if err := o.store.SetJobState(ctx, job.JobID, models.JobStateRunning, "", job.OutputPath, job.DownloadURL); err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}

	batchSize := job.BatchSize
	if batchSize < 1 {
		batchSize = 25
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrentBatches)

	batches := 0
	streamErr := func() error {
		chunk := make([]models.Row, 0, batchSize)
		dispatch := func(rows []models.Row) {
			batches++
			n := batches
			if err := o.store.UpdateJobProgress(ctx, job.JobID, n); err != nil {
				log.Printf("[Orchestrator] Failed to record progress for job %s: %v", job.JobID, err)
			}
			g.Go(func() error {
				return o.runBatch(gctx, job, n, rows)
			})
		}

		for {
			row, ok, err := rows.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			chunk = append(chunk, row)
			if len(chunk) == batchSize {
				batch := chunk
				chunk = make([]models.Row, 0, batchSize)
				dispatch(batch)
			}
		}
		if len(chunk) > 0 {
			dispatch(chunk)
		}
		return nil
	}()

	// Counter barrier: every dispatched batch reports in before the job is
	// allowed to go terminal.
	waitErr := g.Wait()

	if streamErr != nil {
		log.Printf("[Orchestrator] Job %s failed reading source: %v", job.JobID, streamErr)
		return o.store.SetJobState(ctx, job.JobID, models.JobStateFailure, streamErr.Error(), "", "")
	}
	if waitErr != nil {
		log.Printf("[Orchestrator] Job %s failed: %v", job.JobID, waitErr)
		return o.store.SetJobState(ctx, job.JobID, models.JobStateFailure, waitErr.Error(), "", "")
	}

	log.Printf("[Orchestrator] Job %s complete (%d batches)", job.JobID, batches)
	return o.store.SetJobState(ctx, job.JobID, models.JobStateSuccess, "", job.OutputPath, job.DownloadURL)
}

// runBatch fans out the chunk's rows, joins the survivors in order and hands
// them to the collector. A row error drops that row; a collect error aborts
// the job.
func (o *Orchestrator) runBatch(ctx context.Context, job *models.JobRun, batchNum int, rows []models.Row) error {
	results := make([]models.RowResult, len(rows))
	ok := make([]bool, len(rows))

	var wg errgroup.Group
	for i, row := range rows {
		i, row := i, row
		wg.Go(func() error {
			res, err := o.processor.ProcessRow(ctx, row)
			if err != nil {
				log.Printf("[Orchestrator] Job %s batch %d: dropping row %d: %v", job.JobID, batchNum, row.Number, err)
				return nil
			}
			results[i] = res
			ok[i] = true
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return err
	}

	kept := make([]models.RowResult, 0, len(rows))
	for i := range results {
		if ok[i] {
			kept = append(kept, results[i])
		}
	}

	if err := o.collector.Collect(ctx, job, kept); err != nil {
		return fmt.Errorf("batch %d collect failed: %w", batchNum, err)
	}
	if len(kept) > 0 {
		if err := o.store.AddRowsWritten(ctx, job.JobID, len(kept)); err != nil {
			log.Printf("[Orchestrator] Failed to record rows written for job %s: %v", job.JobID, err)
		}
	}
	return nil
}
