package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

// ---------------------------------------------------------------------------
// Google Drive upload
// Streams a finished render from its vendor URL into the team Drive folder
// using the v3 multipart upload endpoint.
// ---------------------------------------------------------------------------

const (
	driveUploadURL = "https://www.googleapis.com/upload/drive/v3/files?uploadType=multipart&fields=id,webViewLink,webContentLink"

	driveMaxRetries     = 3
	driveBaseRetryDelay = 2 * time.Second
	driveMaxRetryDelay  = 20 * time.Second
)

type DriveService struct {
	token    string
	folderID string
	client   *http.Client
}

func NewDriveService(token, folderID string) *DriveService {
	return &DriveService{
		token:    token,
		folderID: folderID,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}
}

// DriveFile is the created file's identity and links.
type DriveFile struct {
	ID             string `json:"id"`
	WebViewLink    string `json:"webViewLink"`
	WebContentLink string `json:"webContentLink"`
}

// UploadFromURL downloads the video at srcURL and uploads it under fileName.
// Without a token it returns a stub so a failed Drive setup never blocks a
// finished render.
func (s *DriveService) UploadFromURL(ctx context.Context, srcURL, fileName string) (*DriveFile, error) {
	if s.token == "" {
		return &DriveFile{ID: "drive_stub", WebViewLink: srcURL}, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", srcURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video download returned status %d", resp.StatusCode)
	}

	video, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read video body: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= driveMaxRetries; attempt++ {
		if attempt > 0 {
			delay := driveRetryDelay(attempt)
			log.Printf("[Drive] Upload retry %d/%d for %s (waiting %v)...", attempt, driveMaxRetries, fileName, delay)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("upload cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		file, err := s.upload(ctx, video, fileName)
		if err == nil {
			log.Printf("[Drive] Uploaded %s (%d bytes, id=%s)", fileName, len(video), file.ID)
			return file, nil
		}
		lastErr = err

		if !isRetryableDriveErr(err) {
			return nil, err
		}
		log.Printf("[Drive] Upload attempt %d failed (retryable): %v", attempt+1, err)
	}

	return nil, fmt.Errorf("upload failed after %d attempts: %w", driveMaxRetries+1, lastErr)
}

func (s *DriveService) upload(ctx context.Context, video []byte, fileName string) (*DriveFile, error) {
	meta := map[string]interface{}{"name": fileName}
	if s.folderID != "" {
		meta["parents"] = []string{s.folderID}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal file metadata: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := mw.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata part: %w", err)
	}
	part.Write(metaJSON)

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", "video/mp4")
	part, err = mw.CreatePart(mediaHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create media part: %w", err)
	}
	part.Write(video)
	mw.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", driveUploadURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Drive upload failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Vendor: "Drive", Status: resp.StatusCode, Body: string(body)}
	}

	var file DriveFile
	if err := json.Unmarshal(body, &file); err != nil {
		return nil, fmt.Errorf("failed to decode Drive response: %w", err)
	}
	return &file, nil
}

func isRetryableDriveErr(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status == http.StatusTooManyRequests || he.Status >= 500
	}
	// Network-level errors are worth another try.
	return true
}

func driveRetryDelay(attempt int) time.Duration {
	delay := float64(driveBaseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(driveMaxRetryDelay) {
		delay = float64(driveMaxRetryDelay)
	}
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}
