package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/handpact/handpact/pkg/core"
	"github.com/handpact/handpact/pkg/enroll"
)

// CandidatesHandler lists the enrollment roster. Reference images are
// never returned; they exist only to prime the model peer.
type CandidatesHandler struct {
	Store  enroll.Store
	Logger *slog.Logger
}

func (h CandidatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFromContext(r.Context())
	if r.Method != http.MethodGet {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed"}, http.StatusMethodNotAllowed)
		return
	}
	if h.Store == nil {
		writeCoreErrorJSON(w, reqID, core.NewAPIError("enrollment store is not configured"), http.StatusInternalServerError)
		return
	}

	candidates, err := h.Store.List(r.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("listing enrollment roster failed", "request_id", reqID, "error", err)
		}
		writeCoreErrorJSON(w, reqID, core.NewAPIError("failed to list candidates"), http.StatusInternalServerError)
		return
	}

	type candidateResp struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		WalletAddress string `json:"wallet_address"`
	}
	out := struct {
		Candidates []candidateResp `json:"candidates"`
	}{Candidates: make([]candidateResp, 0, len(candidates))}
	for _, c := range candidates {
		out.Candidates = append(out.Candidates, candidateResp{ID: c.ID, Name: c.Name, WalletAddress: c.WalletAddress})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(out)
}
