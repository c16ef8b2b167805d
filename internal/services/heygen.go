package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// ---------------------------------------------------------------------------
// HeyGen Avatar Video Service
// Submits avatar renders and polls v1/video_status.get until the hosted
// render completes. Without an API key every call returns stub values so the
// pipeline stays runnable locally.
// ---------------------------------------------------------------------------

const (
	heyGenAPIBase    = "https://api.heygen.com"
	heyGenUploadBase = "https://upload.heygen.com"

	heyGenPollInterval = 10 * time.Second
	heyGenWaitTimeout  = 15 * time.Minute
)

type HeyGenService struct {
	apiKey string
	client *http.Client
}

func NewHeyGenService(apiKey string) *HeyGenService {
	return &HeyGenService{
		apiKey: apiKey,
		client: &http.Client{Timeout: 3 * time.Minute},
	}
}

type heyGenCharacter struct {
	Type        string `json:"type"`
	AvatarID    string `json:"avatar_id"`
	AvatarStyle string `json:"avatar_style"`
}

type heyGenVoice struct {
	Type         string `json:"type"`
	InputText    string `json:"input_text,omitempty"`
	VoiceID      string `json:"voice_id,omitempty"`
	AudioAssetID string `json:"audio_asset_id,omitempty"`
}

type heyGenBackground struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type heyGenVideoInput struct {
	Character  heyGenCharacter  `json:"character"`
	Voice      *heyGenVoice     `json:"voice,omitempty"`
	Background heyGenBackground `json:"background"`
}

type heyGenGenerateRequest struct {
	Title       string             `json:"title"`
	VideoInputs []heyGenVideoInput `json:"video_inputs"`
	Dimension   map[string]int     `json:"dimension"`
	Test        bool               `json:"test"`
}

type heyGenEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// VideoStatus is the polled render state.
type VideoStatus struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	Error    interface{} `json:"error"`
}

func (s *HeyGenService) stubbed() bool {
	return s.apiKey == ""
}

func (s *HeyGenService) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal HeyGen request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", heyGenAPIBase+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HeyGen request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HeyGen request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return &HTTPError{Status: resp.StatusCode, Body: string(respBody), Vendor: "HeyGen"}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode HeyGen response: %w", err)
		}
	}
	return nil
}

func (s *HeyGenService) generate(ctx context.Context, input heyGenVideoInput, title string) (string, error) {
	if title == "" {
		title = "Heritage Reel"
	}
	reqBody := heyGenGenerateRequest{
		Title:       title,
		VideoInputs: []heyGenVideoInput{input},
		Dimension:   map[string]int{"width": 1080, "height": 1920},
	}

	var env heyGenEnvelope
	if err := s.postJSON(ctx, "/v2/video/generate", reqBody, &env); err != nil {
		return "", err
	}

	var data struct {
		VideoID string `json:"video_id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("failed to decode HeyGen video id: %w", err)
	}
	if data.VideoID == "" {
		return "", fmt.Errorf("HeyGen returned no video id")
	}
	return data.VideoID, nil
}

// CreateAvatarVideoFromText submits a motion-avatar render voiced by HeyGen's
// own TTS from the script text.
func (s *HeyGenService) CreateAvatarVideoFromText(ctx context.Context, avatarID, text, voiceID, title string) (string, error) {
	if s.stubbed() {
		return "video_stub_text", nil
	}

	voice := &heyGenVoice{Type: "text", InputText: text}
	if voiceID != "" {
		voice.VoiceID = voiceID
	}

	log.Printf("[HeyGen] Submitting text render (avatar=%s, textLen=%d)", avatarID, len(text))
	return s.generate(ctx, heyGenVideoInput{
		Character:  heyGenCharacter{Type: "avatar", AvatarID: avatarID, AvatarStyle: "normal"},
		Voice:      voice,
		Background: heyGenBackground{Type: "color", Value: "#000000"},
	}, title)
}

// CreateAvatarVideoFromAudio submits a render driven by an uploaded audio
// asset, used when the text path is rejected.
func (s *HeyGenService) CreateAvatarVideoFromAudio(ctx context.Context, avatarID, audioAssetID, title string) (string, error) {
	if s.stubbed() {
		return "video_stub_audio", nil
	}

	log.Printf("[HeyGen] Submitting audio render (avatar=%s, asset=%s)", avatarID, audioAssetID)
	return s.generate(ctx, heyGenVideoInput{
		Character:  heyGenCharacter{Type: "avatar", AvatarID: avatarID, AvatarStyle: "normal"},
		Voice:      &heyGenVoice{Type: "audio", AudioAssetID: audioAssetID},
		Background: heyGenBackground{Type: "color", Value: "#000000"},
	}, title)
}

// UploadAudioAsset uploads raw mp3 bytes and returns the asset id.
func (s *HeyGenService) UploadAudioAsset(ctx context.Context, mp3 []byte) (string, error) {
	if s.stubbed() {
		return "asset_stub_audio", nil
	}

	req, err := http.NewRequestWithContext(ctx, "POST", heyGenUploadBase+"/v1/asset", bytes.NewReader(mp3))
	if err != nil {
		return "", fmt.Errorf("failed to create HeyGen upload request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/mpeg")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HeyGen upload failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", &HTTPError{Status: resp.StatusCode, Body: string(body), Vendor: "HeyGen"}
	}

	var env struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("failed to decode HeyGen upload response: %w", err)
	}
	if env.Data.ID == "" {
		return "", fmt.Errorf("HeyGen upload returned no asset id")
	}
	return env.Data.ID, nil
}

// GetVideoStatus reads the current render state for a video id.
func (s *HeyGenService) GetVideoStatus(ctx context.Context, videoID string) (*VideoStatus, error) {
	if s.stubbed() {
		return &VideoStatus{Status: "completed", VideoURL: "https://example.com/video/avatar.mp4"}, nil
	}

	u := fmt.Sprintf("%s/v1/video_status.get?video_id=%s", heyGenAPIBase, url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HeyGen status request: %w", err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HeyGen status request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(body), Vendor: "HeyGen"}
	}

	var env struct {
		Data VideoStatus `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode HeyGen status: %w", err)
	}
	return &env.Data, nil
}

// WaitForVideo polls until the render completes, fails, or the wait budget
// runs out.
func (s *HeyGenService) WaitForVideo(ctx context.Context, videoID string) (*VideoStatus, error) {
	deadline := time.Now().Add(heyGenWaitTimeout)

	for {
		status, err := s.GetVideoStatus(ctx, videoID)
		if err != nil {
			return nil, err
		}
		switch status.Status {
		case "completed":
			return status, nil
		case "failed":
			return status, fmt.Errorf("HeyGen render failed: %v", status.Error)
		}

		if time.Now().After(deadline) {
			return status, fmt.Errorf("HeyGen render timed out after %v", heyGenWaitTimeout)
		}

		log.Printf("[HeyGen] Video %s still %q, polling again in %v", videoID, status.Status, heyGenPollInterval)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait cancelled: %w", ctx.Err())
		case <-time.After(heyGenPollInterval):
		}
	}
}

// GetShareURL requests a public share link for a completed render.
func (s *HeyGenService) GetShareURL(ctx context.Context, videoID string) (string, error) {
	if s.stubbed() {
		return "https://example.com/share/video_stub_123", nil
	}

	var env struct {
		Data struct {
			ShareURL string `json:"share_url"`
		} `json:"data"`
	}
	if err := s.postJSON(ctx, "/v1/video/share", map[string]string{"video_id": videoID}, &env); err != nil {
		return "", err
	}
	return env.Data.ShareURL, nil
}
