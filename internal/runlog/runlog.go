// Package runlog implements the per-run artifact directory: atomic JSON
// state snapshots, an append-only JSONL event stream, and the
// requests/responses/manifests/files/misc subdirectories a run writes into.
//
// Grounded on the original source's core/cascade_log.py: CascadeRunPaths'
// directory layout, CascadeLogger's atomic tempfile+fsync+os.replace JSON
// write, its redact-before-write wrapping of internal/secrets, and its
// sanitized filename scheme for ad hoc saved blobs.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kajovo/cascade/internal/secrets"
)

// Paths is the fixed directory layout under LOG/<run_id>/.
type Paths struct {
	Root      string
	Requests  string
	Responses string
	Manifests string
	Files     string
	Misc      string
}

// NewPaths derives Paths from logDir and runID, creating every directory.
func NewPaths(logDir, runID string) (Paths, error) {
	root := filepath.Join(logDir, runID)
	p := Paths{
		Root:      root,
		Requests:  filepath.Join(root, "requests"),
		Responses: filepath.Join(root, "responses"),
		Manifests: filepath.Join(root, "manifests"),
		Files:     filepath.Join(root, "files"),
		Misc:      filepath.Join(root, "misc"),
	}
	for _, dir := range []string{p.Root, p.Requests, p.Responses, p.Manifests, p.Files, p.Misc} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return Paths{}, fmt.Errorf("runlog: mkdir %s: %w", dir, err)
		}
	}
	return p, nil
}

// Event is one line of events.jsonl.
type Event struct {
	Time time.Time      `json:"time"`
	Kind string         `json:"kind"`
	Data map[string]any `json:"data,omitempty"`
}

// Logger owns one run's log directory. Safe for concurrent use.
type Logger struct {
	paths Paths
	mu    sync.Mutex
	evf   *os.File
}

// Open creates/opens the run's event stream for appending.
func Open(paths Paths) (*Logger, error) {
	f, err := os.OpenFile(filepath.Join(paths.Root, "events.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("runlog: open events.jsonl: %w", err)
	}
	return &Logger{paths: paths, evf: f}, nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evf.Close()
}

// Event appends a redacted, timestamped event line.
func (l *Logger) Event(kind string, data map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	redacted, _ := secrets.Redact(data).(map[string]any)
	ev := Event{Time: time.Now().UTC(), Kind: kind, Data: redacted}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("runlog: marshal event: %w", err)
	}
	if _, err := l.evf.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("runlog: write event: %w", err)
	}
	return l.evf.Sync()
}

// SaveJSON atomically writes v (after redaction) as pretty JSON to
// <dir>/<sanitizedName>.json via a temp file + fsync + rename, so a crash
// mid-write never leaves a half-written state file behind.
func SaveJSON(dir, name string, v any) error {
	redacted := secrets.Redact(toAny(v))
	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return fmt.Errorf("runlog: marshal: %w", err)
	}

	final := filepath.Join(dir, sanitizeFilename(name)+".json")
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("runlog: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("runlog: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("runlog: fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("runlog: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return fmt.Errorf("runlog: rename: %w", err)
	}
	return nil
}

// LoadJSON reads <dir>/<sanitizedName>.json into v, the counterpart to
// SaveJSON used to reconstruct a RunState for listing or resume.
func LoadJSON(dir, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(dir, sanitizeFilename(name)+".json"))
	if err != nil {
		return fmt.Errorf("runlog: read: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("runlog: unmarshal: %w", err)
	}
	return nil
}

// ListRunDirs returns every run id with a directory under logDir, sorted so
// callers get deterministic listings.
func ListRunDirs(logDir string) ([]string, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("runlog: read log dir: %w", err)
	}
	var runIDs []string
	for _, e := range entries {
		if e.IsDir() {
			runIDs = append(runIDs, e.Name())
		}
	}
	return runIDs, nil
}

// toAny round-trips v through JSON so secrets.Redact (which only understands
// map[string]any/[]any/string/primitives) can walk arbitrary struct values.
func toAny(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "unnamed"
	}
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}
