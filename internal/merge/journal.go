package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JohanCodinha/ghmirror/internal/md"
	"github.com/JohanCodinha/ghmirror/internal/store"
)

// Journal preserves the payloads the merge engine discards when a stale
// fetch loses a revision conflict. The mirror favors retention over storage
// minimality; the journal extends that to data that never made it in.
type Journal struct {
	dir string
}

// NewJournal creates a journal rooted at dir, creating it if needed.
func NewJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	return &Journal{dir: dir}, nil
}

// WriteItem writes a discarded item payload as a timestamped markdown file.
func (j *Journal) WriteItem(item store.Item) error {
	timestamp := time.Now().UTC().Format("20060102_150405")
	name := fmt.Sprintf("%s_%s.md", strings.ReplaceAll(item.ID, "/", "_"), timestamp)
	path := filepath.Join(j.dir, name)

	content := md.ToMarkdown(&item, nil)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write journal file: %w", err)
	}
	return nil
}
