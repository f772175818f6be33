package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RelayExecutor forwards transfer requests to an external payment relay
// over HTTP. The relay owns custody and settlement; this client only
// submits and reports.
type RelayExecutor struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewRelayExecutor(apiKey, baseURL string, client *http.Client) *RelayExecutor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RelayExecutor{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}
}

// Configured reports whether the executor has enough configuration to
// submit transfers.
func (e *RelayExecutor) Configured() bool {
	return e != nil && e.baseURL != ""
}

type relayTransferRequest struct {
	ToAddress string  `json:"to_address"`
	Amount    float64 `json:"amount"`
	Memo      string  `json:"memo,omitempty"`
}

type relayTransferResponse struct {
	TxID   string `json:"tx_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (e *RelayExecutor) Send(ctx context.Context, toAddress string, amount float64, memo string) (Receipt, error) {
	if !e.Configured() {
		return Receipt{}, fmt.Errorf("payment relay URL is not configured")
	}

	body, err := json.Marshal(relayTransferRequest{
		ToAddress: toAddress,
		Amount:    amount,
		Memo:      memo,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("encode transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("submit transfer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Receipt{}, fmt.Errorf("payment relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed relayTransferResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Receipt{}, fmt.Errorf("decode transfer response: %w", err)
	}
	if parsed.Error != "" {
		return Receipt{}, fmt.Errorf("payment relay rejected transfer: %s", parsed.Error)
	}
	if parsed.TxID == "" {
		return Receipt{}, fmt.Errorf("payment relay returned no transaction id")
	}
	status := parsed.Status
	if status == "" {
		status = "sent"
	}
	return Receipt{TxID: parsed.TxID, Status: status}, nil
}
