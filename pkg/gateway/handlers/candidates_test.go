package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/handpact/handpact/pkg/enroll"
)

type stubStore struct {
	candidates []enroll.Candidate
	err        error
}

func (s stubStore) List(ctx context.Context) ([]enroll.Candidate, error) {
	return s.candidates, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCandidatesHandler_ListsRoster(t *testing.T) {
	h := CandidatesHandler{
		Store: stubStore{candidates: []enroll.Candidate{
			{ID: "c_1", Name: "Alice Chen", WalletAddress: "0xAA11", ReferenceImages: []string{"ref.jpg"}},
			{ID: "c_2", Name: "Bob Okafor", WalletAddress: "0xBB22"},
		}},
		Logger: discardLogger(),
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	var resp struct {
		Candidates []map[string]any `json:"candidates"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Candidates) != 2 {
		t.Fatalf("candidates=%d", len(resp.Candidates))
	}
	if resp.Candidates[0]["name"] != "Alice Chen" || resp.Candidates[0]["wallet_address"] != "0xAA11" {
		t.Fatalf("first candidate=%+v", resp.Candidates[0])
	}
	if _, leaked := resp.Candidates[0]["reference_images"]; leaked {
		t.Fatalf("reference images must not be returned")
	}
}

func TestCandidatesHandler_StoreError(t *testing.T) {
	h := CandidatesHandler{
		Store:  stubStore{err: errors.New("boom")},
		Logger: discardLogger(),
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := resp["error"]; !ok {
		t.Fatalf("expected error envelope, body=%q", rr.Body.String())
	}
}

func TestCandidatesHandler_MethodNotAllowed(t *testing.T) {
	h := CandidatesHandler{Store: stubStore{}, Logger: discardLogger()}

	req := httptest.NewRequest(http.MethodPost, "/v1/candidates", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestNotFoundHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/nope", nil)
	rr := httptest.NewRecorder()
	NotFoundHandler{}.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp errorEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || string(resp.Error.Type) != "not_found_error" {
		t.Fatalf("error=%+v", resp.Error)
	}
}
