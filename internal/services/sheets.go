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

	"github.com/nexgsol/hmva/internal/models"
)

// ---------------------------------------------------------------------------
// Google Sheets write-back
// After a batch is collected, paragraph/ssml land back in the origin sheet:
// ensure the Paragraph and SSML columns exist in the header row, then
// batch-update the exact cells addressed by each result's source row number.
// ---------------------------------------------------------------------------

const sheetsBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

type SheetsService struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewSheetsService(token string) *SheetsService {
	return &SheetsService{
		token:   token,
		baseURL: sheetsBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// ColumnName converts a 1-based column index to A1 notation: 1 -> A,
// 26 -> Z, 27 -> AA.
func ColumnName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}

func (s *SheetsService) do(ctx context.Context, method, u string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal Sheets request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create Sheets request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("Sheets request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return &HTTPError{Vendor: "Sheets", Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode Sheets response: %w", err)
		}
	}
	return nil
}

// ensureHeaders makes sure needed column titles exist in row 1 and returns a
// title -> 1-based column index map.
func (s *SheetsService) ensureHeaders(ctx context.Context, sheetID, sheetName string, needed []string) (map[string]int, error) {
	rangeRef := url.PathEscape(fmt.Sprintf("%s!1:1", sheetName))
	var head struct {
		Values [][]string `json:"values"`
	}
	if err := s.do(ctx, "GET", fmt.Sprintf("%s/%s/values/%s", s.baseURL, sheetID, rangeRef), nil, &head); err != nil {
		return nil, err
	}

	var header []string
	if len(head.Values) > 0 {
		header = head.Values[0]
	}

	changed := false
	for _, col := range needed {
		found := false
		for _, h := range header {
			if h == col {
				found = true
				break
			}
		}
		if !found {
			header = append(header, col)
			changed = true
		}
	}

	if changed {
		updateRange := fmt.Sprintf("%s!A1:%s1", sheetName, ColumnName(len(header)))
		u := fmt.Sprintf("%s/%s/values/%s?valueInputOption=RAW", s.baseURL, sheetID, url.PathEscape(updateRange))
		payload := map[string]interface{}{"values": [][]string{header}}
		if err := s.do(ctx, "PUT", u, payload, nil); err != nil {
			return nil, err
		}
	}

	m := make(map[string]int, len(header))
	for i, name := range header {
		m[name] = i + 1
	}
	return m, nil
}

// WriteBack mirrors a batch's paragraph and ssml into the origin sheet. A
// missing token makes this a silent no-op.
func (s *SheetsService) WriteBack(ctx context.Context, sheetID, sheetName string, results []models.RowResult) error {
	if s.token == "" || sheetID == "" {
		return nil
	}
	if sheetName == "" {
		sheetName = "Sheet1"
	}

	colmap, err := s.ensureHeaders(ctx, sheetID, sheetName, []string{"Paragraph", "SSML"})
	if err != nil {
		return err
	}
	pCol := colmap["Paragraph"]
	sCol := colmap["SSML"]

	type valueRange struct {
		Range  string     `json:"range"`
		Values [][]string `json:"values"`
	}
	var data []valueRange
	for _, r := range results {
		if r.Number < 2 {
			continue
		}
		data = append(data, valueRange{
			Range:  fmt.Sprintf("%s!%s%d", sheetName, ColumnName(pCol), r.Number),
			Values: [][]string{{r.Paragraph}},
		})
		data = append(data, valueRange{
			Range:  fmt.Sprintf("%s!%s%d", sheetName, ColumnName(sCol), r.Number),
			Values: [][]string{{r.SSML}},
		})
	}
	if len(data) == 0 {
		return nil
	}

	u := fmt.Sprintf("%s/%s/values:batchUpdate", s.baseURL, sheetID)
	payload := map[string]interface{}{
		"valueInputOption": "RAW",
		"data":             data,
	}
	if err := s.do(ctx, "POST", u, payload, nil); err != nil {
		return err
	}

	log.Printf("[Sheets] Wrote back %d cells to %s", len(data), sheetID)
	return nil
}
