// Package history keeps a JSONL log of answered queries.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/diogo/perplexity-web-api-go/pkg/models"
)

// maxLineSize bounds one history line; answers can be long.
const maxLineSize = 8 << 20

// ErrNoEntry is returned by Get for an index outside the history.
var ErrNoEntry = errors.New("no such history entry")

// NewEntry records a completed exchange.
func NewEntry(req models.SearchRequest, resp *models.SearchResponse, thread string) models.HistoryEntry {
	return models.HistoryEntry{
		Timestamp:   time.Now(),
		Query:       req.Query,
		Mode:        string(req.Mode),
		Model:       string(req.Model),
		Thread:      thread,
		Attachments: resp.FollowUp.Attachments,
		BackendUUID: resp.FollowUp.BackendUUID,
		Citations:   len(resp.WebResults),
		Response:    resp.Answer,
	}
}

// Writer appends entries to the history file.
type Writer struct {
	mu   sync.Mutex
	path string
}

// NewWriter creates a new history writer.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &Writer{path: path}, nil
}

// Append adds a new entry to the history file. It is safe for concurrent use.
func (w *Writer) Append(entry models.HistoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write history entry: %w", err)
	}
	return nil
}

// Reader handles reading history entries.
type Reader struct {
	path string
}

// NewReader creates a new history reader.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// ReadAll reads all history entries, oldest first. Malformed lines are
// skipped.
func (r *Reader) ReadAll() ([]models.HistoryEntry, error) {
	file, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.HistoryEntry{}, nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	entries := []models.HistoryEntry{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry models.HistoryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading history: %w", err)
	}
	return entries, nil
}

// ReadLast reads the last n entries.
func (r *Reader) ReadLast(n int) ([]models.HistoryEntry, error) {
	entries, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if len(entries) <= n {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

// Get returns the entry at index, counting from 1 = most recent.
func (r *Reader) Get(index int) (models.HistoryEntry, error) {
	entries, err := r.ReadAll()
	if err != nil {
		return models.HistoryEntry{}, err
	}
	if index < 1 || index > len(entries) {
		return models.HistoryEntry{}, fmt.Errorf("%w: %d", ErrNoEntry, index)
	}
	return entries[len(entries)-index], nil
}

// Clear removes all history entries.
func (r *Reader) Clear() error {
	err := os.Truncate(r.path, 0)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Search finds entries whose query or thread contains query, ignoring case.
func (r *Reader) Search(query string) ([]models.HistoryEntry, error) {
	entries, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var results []models.HistoryEntry
	for _, entry := range entries {
		if containsIgnoreCase(entry.Query, query) || containsIgnoreCase(entry.Thread, query) {
			results = append(results, entry)
		}
	}
	return results, nil
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
