package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexgsol/hmva/internal/models"
)

func TestColumnName(t *testing.T) {
	cases := map[int]string{
		1:  "A",
		2:  "B",
		26: "Z",
		27: "AA",
		28: "AB",
		52: "AZ",
		53: "BA",
	}
	for n, want := range cases {
		if got := ColumnName(n); got != want {
			t.Errorf("ColumnName(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestWriteBackNoTokenIsNoop(t *testing.T) {
	s := NewSheetsService("")
	err := s.WriteBack(context.Background(), "sheet-1", "Sheet1", []models.RowResult{{Number: 2}})
	if err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestWriteBackTargetsOriginCells(t *testing.T) {
	var gotBatch struct {
		ValueInputOption string `json:"valueInputOption"`
		Data             []struct {
			Range  string     `json:"range"`
			Values [][]string `json:"values"`
		} `json:"data"`
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v4/spreadsheets/sheet-1/values/", func(w http.ResponseWriter, r *http.Request) {
		// Header probe: Paragraph and SSML already present
		json.NewEncoder(w).Encode(map[string]interface{}{
			"values": [][]string{{"icon", "notes", "Paragraph", "SSML"}},
		})
	})
	mux.HandleFunc("/v4/spreadsheets/sheet-1/values:batchUpdate", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBatch); err != nil {
			t.Errorf("failed to decode batch update: %v", err)
		}
		w.Write([]byte("{}"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewSheetsService("token")
	s.client = srv.Client()
	s.baseURL = srv.URL + "/v4/spreadsheets"

	results := []models.RowResult{
		{Number: 2, Paragraph: "P2", SSML: "S2"},
		{Number: 1, Paragraph: "skipped header row"},
	}
	if err := s.WriteBack(context.Background(), "sheet-1", "Sheet1", results); err != nil {
		t.Fatalf("WriteBack failed: %v", err)
	}

	if gotBatch.ValueInputOption != "RAW" {
		t.Errorf("expected RAW input option, got %q", gotBatch.ValueInputOption)
	}
	if len(gotBatch.Data) != 2 {
		t.Fatalf("expected 2 cell updates (row 1 skipped), got %d", len(gotBatch.Data))
	}
	if gotBatch.Data[0].Range != "Sheet1!C2" {
		t.Errorf("paragraph cell = %q, want Sheet1!C2", gotBatch.Data[0].Range)
	}
	if gotBatch.Data[1].Range != "Sheet1!D2" {
		t.Errorf("ssml cell = %q, want Sheet1!D2", gotBatch.Data[1].Range)
	}
}
