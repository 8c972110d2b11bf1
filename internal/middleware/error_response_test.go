package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/songdash/songdash/internal/model"
)

func TestWriteErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, model.NewMomentNotFoundError())

	resp := w.Result()
	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("デコードに失敗: %v", err)
	}
	if body.Error != "Moment not found" {
		t.Errorf("error = %q, want %q", body.Error, "Moment not found")
	}
	if body.Code != "MOMENT_NOT_FOUND" {
		t.Errorf("code = %q, want MOMENT_NOT_FOUND", body.Code)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestampがRFC3339ではない: %q", body.Timestamp)
	}
}

func TestWriteErrorResponse_EnvelopeFieldNames(t *testing.T) {
	// エンベロープのフィールド名は error / code / timestamp で固定
	w := httptest.NewRecorder()
	WriteErrorResponse(w, model.NewInvalidJSONError())

	var raw map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&raw); err != nil {
		t.Fatalf("デコードに失敗: %v", err)
	}
	for _, field := range []string{"error", "code", "timestamp"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("フィールド %q が無い", field)
		}
	}
	if len(raw) != 3 {
		t.Errorf("フィールド数 = %d, want 3", len(raw))
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != 500 {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}

	var body ErrorResponseBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, 201, map[string]string{"id": "abc123def456"})

	resp := w.Result()
	if resp.StatusCode != 201 {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}
