package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/nexgsol/hmva/internal/batch"
	"github.com/nexgsol/hmva/internal/config"
	"github.com/nexgsol/hmva/internal/db"
	"github.com/nexgsol/hmva/internal/models"
	"github.com/nexgsol/hmva/internal/queue"
	"github.com/nexgsol/hmva/internal/script"
	"github.com/nexgsol/hmva/internal/services"
	"github.com/nexgsol/hmva/internal/source"
)

type Worker struct {
	cfg       *config.Config
	db        *db.DB
	queue     *queue.Queue
	generator *script.Generator
	collector *batch.Collector
	tts       *services.ElevenLabsService
	heygen    *services.HeyGenService
	airtable  *services.AirtableService
	drive     *services.DriveService

	httpClient *http.Client
}

func New(
	cfg *config.Config,
	database *db.DB,
	q *queue.Queue,
	generator *script.Generator,
	collector *batch.Collector,
	tts *services.ElevenLabsService,
	heygen *services.HeyGenService,
	airtable *services.AirtableService,
	drive *services.DriveService,
) *Worker {
	return &Worker{
		cfg:        cfg,
		db:         database,
		queue:      q,
		generator:  generator,
		collector:  collector,
		tts:        tts,
		heygen:     heygen,
		airtable:   airtable,
		drive:      drive,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Start begins processing jobs from all queues
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx, queue.QueueGenerateParagraphs, w.handleGenerateParagraphs)
		go w.processQueue(ctx, queue.QueueRenderVideo, w.handleRenderVideo)
	}

	<-ctx.Done()
	log.Println("Worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context, queueName string, handler func(context.Context, *queue.Job) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
			if err != nil {
				log.Printf("Error dequeuing from %s: %v", queueName, err)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			log.Printf("Processing job %s (type: %s)", job.ID, job.Type)

			if err := handler(ctx, job); err != nil {
				log.Printf("Job %s failed: %v", job.ID, err)
			} else {
				log.Printf("Job %s completed", job.ID)
			}
		}
	}
}

// handleGenerateParagraphs runs one batch paragraph job end to end. Input
// configuration problems fail the job immediately; everything downstream is
// the orchestrator's business.
func (w *Worker) handleGenerateParagraphs(ctx context.Context, job *queue.Job) error {
	run, err := w.db.GetJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if run.State.Terminal() {
		log.Printf("[Worker] Job %s already %s, skipping", run.JobID, run.State)
		return nil
	}

	rows, err := source.Open(ctx, source.Descriptor{
		Mode:      run.Mode,
		Path:      run.SourcePath,
		SheetURL:  run.SheetURL,
		SheetName: run.SheetName,
	}, w.httpClient)
	if err != nil {
		var cfgErr *source.ConfigError
		if errors.As(err, &cfgErr) {
			log.Printf("[Worker] Job %s has a fatal input problem: %v", run.JobID, cfgErr)
			return w.db.SetJobState(ctx, run.JobID, models.JobStateFailure, cfgErr.Error(), "", "")
		}
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer rows.Close()

	if err := w.collector.CreateArtifact(run.OutputPath); err != nil {
		return w.db.SetJobState(ctx, run.JobID, models.JobStateFailure, err.Error(), "", "")
	}

	orch := batch.NewOrchestrator(w.generator, w.collector, w.db, w.cfg.MaxConcurrentBatches)
	return orch.Run(ctx, run, rows)
}

// handleRenderVideo walks one script request through the full render chain:
// script + QC, HeyGen avatar render (text path first, audio fallback when the
// vendor rejects it), Drive archive, Airtable sync, and slot scheduling.
func (w *Worker) handleRenderVideo(ctx context.Context, job *queue.Job) error {
	req, err := w.db.GetRequest(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to load request: %w", err)
	}

	fail := func(stage string, cause error) error {
		msg := fmt.Sprintf("%s: %v", stage, cause)
		if dbErr := w.db.UpdateRequestError(ctx, req.ID, msg); dbErr != nil {
			log.Printf("[Worker] Failed to record request error: %v", dbErr)
		}
		return fmt.Errorf("request %s %s", req.ID, msg)
	}

	// 1. Script draft with the local QC gate.
	text, report, err := w.generator.GenerateScript(ctx, req.IconOrTopic, req.Notes, req.Duration)
	if err != nil {
		return fail("script generation failed", err)
	}
	if err := w.db.SetRequestScript(ctx, req.ID, text); err != nil {
		return fail("failed to save script", err)
	}
	log.Printf("[Worker] Request %s drafted (%d words, fixNeeded=%v)", req.ID, report.WordCount, report.FixNeeded)

	avatarID := req.AvatarID
	if avatarID == "" {
		avatarID = w.cfg.HeyGenAvatarID
	}
	title := fmt.Sprintf("Heritage Reel - %s", req.IconOrTopic)

	// 2. Render: text path first, audio-asset fallback when HeyGen rejects
	// the text payload.
	if err := w.db.UpdateRequestStatus(ctx, req.ID, models.RequestStatusAssembling); err != nil {
		log.Printf("[Worker] Failed to update request status: %v", err)
	}

	videoID, err := w.heygen.CreateAvatarVideoFromText(ctx, avatarID, text, req.VoiceID, title)
	if err != nil {
		var httpErr *services.HTTPError
		if !errors.As(err, &httpErr) {
			return fail("render submit failed", err)
		}
		log.Printf("[Worker] Request %s text render rejected (%d), falling back to audio", req.ID, httpErr.Status)

		audio, ttsErr := w.tts.Synthesize(ctx, text, req.VoiceID)
		if ttsErr != nil {
			return fail("tts fallback failed", ttsErr)
		}
		assetID, upErr := w.heygen.UploadAudioAsset(ctx, audio)
		if upErr != nil {
			return fail("audio asset upload failed", upErr)
		}
		videoID, err = w.heygen.CreateAvatarVideoFromAudio(ctx, avatarID, assetID, title)
		if err != nil {
			return fail("audio render submit failed", err)
		}
	}

	status, err := w.heygen.WaitForVideo(ctx, videoID)
	if err != nil {
		return fail("render did not complete", err)
	}

	shareURL, err := w.heygen.GetShareURL(ctx, videoID)
	if err != nil {
		log.Printf("[Worker] Request %s share URL unavailable: %v", req.ID, err)
		shareURL = status.VideoURL
	}

	fileName := fmt.Sprintf("%s_%s.mp4", req.IconOrTopic, req.ID)
	if err := w.db.SetRequestAssets(ctx, req.ID, status.VideoURL, shareURL, fileName); err != nil {
		return fail("failed to save render assets", err)
	}

	// 3. Archive to Drive. Not worth failing a finished render over.
	if file, err := w.drive.UploadFromURL(ctx, status.VideoURL, fileName); err != nil {
		log.Printf("[Worker] Request %s Drive upload failed: %v", req.ID, err)
	} else if file.WebViewLink != "" {
		if err := w.db.SetRequestAssets(ctx, req.ID, "", file.WebViewLink, ""); err != nil {
			log.Printf("[Worker] Failed to save Drive link: %v", err)
		}
	}

	// 4. Sync to Airtable and pick the next posting slot.
	slot, publishAt := nextPostSlot(w.cfg.BrandTimezone, w.cfg.PostWindows, time.Now())

	fields := map[string]interface{}{
		"Icon":       req.IconOrTopic,
		"Script":     text,
		"Video URL":  status.VideoURL,
		"Share URL":  shareURL,
		"Slot":       slot,
		"Publish At": publishAt.Format(time.RFC3339),
	}
	if _, err := w.airtable.PushRecord(ctx, fields); err != nil {
		log.Printf("[Worker] Request %s Airtable sync failed: %v", req.ID, err)
	}

	if err := w.db.SetRequestSchedule(ctx, req.ID, slot, &publishAt); err != nil {
		return fail("failed to save schedule", err)
	}

	log.Printf("[Worker] Request %s rendered and scheduled for %s", req.ID, slot)
	return nil
}
