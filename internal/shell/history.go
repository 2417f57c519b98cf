package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultHistorySize bounds the history when no size is configured.
const DefaultHistorySize = 500

// HistoryPath returns the history file under home.
func HistoryPath(home string) string {
	return filepath.Join(home, ".virsh", "history")
}

// history is a bounded list of input lines, oldest first.
type history struct {
	lines []string
	max   int
}

func newHistory(max int) *history {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &history{max: max}
}

// AddHistory appends line, dropping the oldest entry when full. Blank
// lines and repeats of the previous line are skipped.
func (h *history) AddHistory(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if n := len(h.lines); n > 0 && h.lines[n-1] == line {
		return
	}
	h.lines = append(h.lines, line)
	if len(h.lines) > h.max {
		h.lines = h.lines[len(h.lines)-h.max:]
	}
}

// Add, Len and At let a history back term.Terminal's arrow-key recall.
func (h *history) Add(line string) { h.AddHistory(line) }

func (h *history) Len() int { return len(h.lines) }

// At returns the entry idx steps back from the newest.
func (h *history) At(idx int) string { return h.lines[len(h.lines)-1-idx] }

// Entries returns the stored lines, oldest first.
func (h *history) Entries() []string {
	return h.lines
}

// LoadHistory reads path. A missing file is not an error.
func (h *history) LoadHistory(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		h.AddHistory(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	return nil
}

// SaveHistory writes the entries to path, creating its directory. The
// file mode is left to the umask.
func (h *history) SaveHistory(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	var b strings.Builder
	for _, line := range h.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}
