package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileName is the ledger file inside the ledger directory.
const FileName = "runs.jsonl"

// FileStore appends records as JSON lines. Begin and Finish each append a line;
// readers fold lines by id so the last line for a run wins.
type FileStore struct {
	path string
	mu   sync.Mutex
	log  *zap.Logger
}

// NewFileStore creates dir if needed and returns a store writing to dir/runs.jsonl.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	return &FileStore{
		path: filepath.Join(dir, FileName),
		log:  logger.Named("ledger"),
	}, nil
}

// Path is the ledger file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Begin(_ context.Context, r *Record) error  { return s.append(r) }
func (s *FileStore) Finish(_ context.Context, r *Record) error { return s.append(r) }
func (s *FileStore) Close() error                              { return nil }

func (s *FileStore) append(r *Record) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", r.ID, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("writing ledger: %w", err)
	}
	return f.Close()
}

// load reads the ledger and folds it by id, keeping first-seen order.
func (s *FileStore) load() ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	byID := make(map[string]*Record)
	var order []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil || r.ID == "" {
			s.log.Warn("Skipping unreadable ledger line.", zap.String("path", s.path), zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if _, seen := byID[r.ID]; !seen {
			order = append(order, r.ID)
		}
		byID[r.ID] = &r
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}

	out := make([]*Record, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

func (s *FileStore) Get(_ context.Context, id string) (*Record, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	return matchID(records, id)
}

func (s *FileStore) List(_ context.Context, limit int) ([]*Record, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// matchID finds the record whose id equals id or uniquely starts with it.
func matchID(records []*Record, id string) (*Record, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}
	var found *Record
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
		if strings.HasPrefix(r.ID, id) {
			if found != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
			}
			found = r
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return found, nil
}
