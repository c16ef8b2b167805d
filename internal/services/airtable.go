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

// AirtableService syncs finished renders into the team's Airtable base.
type AirtableService struct {
	token  string
	baseID string
	table  string
	client *http.Client
}

func NewAirtableService(token, baseID, table string) *AirtableService {
	if table == "" {
		table = "Requests"
	}
	return &AirtableService{
		token:  token,
		baseID: baseID,
		table:  table,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// PushRecord creates a record with the given fields and returns its id.
// Without credentials it returns a stub id so the pipeline keeps moving.
func (s *AirtableService) PushRecord(ctx context.Context, fields map[string]interface{}) (string, error) {
	if s.token == "" || s.baseID == "" {
		return "airtable_stub", nil
	}

	body, err := json.Marshal(map[string]interface{}{"fields": fields})
	if err != nil {
		return "", fmt.Errorf("failed to marshal Airtable record: %w", err)
	}

	u := fmt.Sprintf("https://api.airtable.com/v0/%s/%s", s.baseID, url.PathEscape(s.table))
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create Airtable request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Airtable request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", &HTTPError{Vendor: "Airtable", Status: resp.StatusCode, Body: string(respBody)}
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to decode Airtable response: %w", err)
	}

	log.Printf("[Airtable] Record created (%s)", out.ID)
	return out.ID, nil
}
