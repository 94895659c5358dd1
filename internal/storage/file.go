package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "zapblast/pkg/logx"
)

// fileStore is a dependency-free persistence backend: one append-only JSON
// Lines file (<prefix>.reports.jsonl). RecentReports scans it backwards-ish
// (full scan, filter, tail), fine for an audit log of this size.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	file *os.File
	path string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(filepath.Base(path)))
	reportsPath := filepath.Join(dir, base) + ".reports.jsonl"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(reportsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, file: f, path: reportsPath}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *fileStore) AppendReport(ctx context.Context, e ReportEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("report file closed")
	}
	return json.NewEncoder(s.file).Encode(e)
}

func (s *fileStore) RecentReports(ctx context.Context, campaignID string, limit int) ([]ReportEntry, error) {
	_ = ctx
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []ReportEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e ReportEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue // tolerate a torn last line
		}
		if campaignID != "" && e.CampaignID != campaignID {
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
