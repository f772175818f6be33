package enroll

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FileStore reads candidates from a JSON file. The file holds either a
// bare array of candidates or an object with a "candidates" array.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) List(ctx context.Context) ([]Candidate, error) {
	if s == nil || strings.TrimSpace(s.Path) == "" {
		return nil, fmt.Errorf("enrollment file path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read enrollment file %q: %w", s.Path, err)
	}

	var list []Candidate
	if err := json.Unmarshal(raw, &list); err == nil {
		return validated(list)
	}

	var wrapped struct {
		Candidates []Candidate `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode enrollment file %q: %w", s.Path, err)
	}
	return validated(wrapped.Candidates)
}

func validated(list []Candidate) ([]Candidate, error) {
	out := make([]Candidate, 0, len(list))
	for i, c := range list {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("candidate[%d]: name is required", i)
		}
		if strings.TrimSpace(c.WalletAddress) == "" {
			return nil, fmt.Errorf("candidate[%d] (%s): wallet_address is required", i, c.Name)
		}
		out = append(out, c)
	}
	return out, nil
}
