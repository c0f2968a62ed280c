package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"classcal/internal/course"
	"classcal/internal/model"
)

// Saved is what a Persister reads back from disk.
type Saved struct {
	Selection   course.Selection
	Events      []model.Event
	Source      string
	LastUpdated time.Time
}

type fileEvent struct {
	Summary     string `json:"summary"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

type fileState struct {
	SelectedCourses course.Selection `json:"selected_courses"`
	Events          []fileEvent      `json:"events"`
	Source          string           `json:"source,omitempty"`
	LastUpdated     string           `json:"last_updated,omitempty"`
}

// Persister stores the selection and the last loaded events as JSON, with
// times written as RFC 3339 strings.
type Persister struct {
	path string
	loc  *time.Location
}

// NewPersister returns a Persister for path. Restored times are converted
// to loc (time.Local when nil).
func NewPersister(path string, loc *time.Location) *Persister {
	if loc == nil {
		loc = time.Local
	}
	return &Persister{path: path, loc: loc}
}

// Path returns the state file location.
func (p *Persister) Path() string {
	return p.path
}

// Load reads the state file. A missing file returns (nil, nil). Events whose
// times cannot be parsed are skipped.
func (p *Persister) Load() (*Saved, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var fsState fileState
	if err := json.Unmarshal(data, &fsState); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", p.path, err)
	}

	saved := &Saved{
		Selection: fsState.SelectedCourses,
		Events:    make([]model.Event, 0, len(fsState.Events)),
		Source:    fsState.Source,
	}
	for _, fe := range fsState.Events {
		start, err := time.Parse(time.RFC3339, fe.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, fe.End)
		if err != nil {
			end = start
		}
		saved.Events = append(saved.Events, model.Event{
			Summary:     fe.Summary,
			Start:       start.In(p.loc),
			End:         end.In(p.loc),
			Location:    fe.Location,
			Description: fe.Description,
		})
	}
	if fsState.LastUpdated != "" {
		if t, err := time.Parse(time.RFC3339, fsState.LastUpdated); err == nil {
			saved.LastUpdated = t.In(p.loc)
		}
	}
	return saved, nil
}

// Save writes snap atomically (temp file + rename) with 0600 permissions.
func (p *Persister) Save(snap *Snapshot) error {
	out := fileState{
		SelectedCourses: snap.Selection,
		Events:          make([]fileEvent, 0, len(snap.Events)),
		Source:          snap.Source,
	}
	for _, ev := range snap.Events {
		out.Events = append(out.Events, fileEvent{
			Summary:     ev.Summary,
			Start:       ev.Start.Format(time.RFC3339),
			End:         ev.End.Format(time.RFC3339),
			Location:    ev.Location,
			Description: ev.Description,
		})
	}
	if !snap.LastUpdated.IsZero() {
		out.LastUpdated = snap.LastUpdated.Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
