package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusCreated, map[string]int{"mal_id": 7})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"mal_id":7}` {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestConflictEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	Conflict(rr, "SONG_EXISTS", "song already exists", "rid-1", map[string]any{"number": 1})

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "SONG_EXISTS" || resp.Error.RequestID != "rid-1" {
		t.Fatalf("unexpected error payload: %+v", resp.Error)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Title string `json:"title_ro"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title_ro":"Cowboy Bebop"}`))
	if err := DecodeJSON(httptest.NewRecorder(), req, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.Title != "Cowboy Bebop" {
		t.Fatalf("unexpected title %q", dst.Title)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x"}`))
	if err := DecodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Fatal("expected error for unknown field")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title_ro":"a"}{"title_ro":"b"}`))
	if err := DecodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Fatal("expected error for trailing data")
	}
}
