// Package registry assigns short hierarchical IDs to a research session
// and its derived artifacts (document, audio) and records their lineage.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"regexp"
	"sync"
	"time"
)

// Artifact types.
const (
	TypeSession  = "session"
	TypeDocument = "document"
	TypeAudio    = "audio"
)

// alphabet is the 33-character set used for session base IDs. The
// confusable characters 0, O and 1 are excluded so IDs survive being
// read aloud or hand-copied. With 33^3 = 35,937 combinations and a registry that
// stays small, rejection sampling is a deliberate choice, not an oversight.
const alphabet = "ABCDEFGHIJKLMNPQRSTUVWXYZ23456789"

// Entry is one registered artifact.
type Entry struct {
	Type          string    `json:"type"`
	ParentID      string    `json:"parent_id,omitempty"`
	Title         string    `json:"title,omitempty"`
	Query         string    `json:"query,omitempty"`
	ExternalID    string    `json:"external_id,omitempty"`
	NotebookTitle string    `json:"notebook_title,omitempty"`
	LocalPath     string    `json:"local_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Registry is the in-memory artifact map, persisted wholesale as a single
// JSON document on every mutation. All operations are serialized by the
// registry mutex, which also makes sibling-counter derivation atomic.
type Registry struct {
	mu        sync.Mutex
	path      string
	artifacts map[string]*Entry
	rng       *rand.Rand
	logger    *slog.Logger
	dirty     bool
	now       func() time.Time
}

type registryFile struct {
	Artifacts map[string]*Entry `json:"artifacts"`
}

// Load opens the registry at path, creating an empty one if the file
// does not exist yet.
func Load(path string, logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		path:      path,
		artifacts: make(map[string]*Entry),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}
	if file.Artifacts != nil {
		r.artifacts = file.Artifacts
	}
	return r, nil
}

// RegisterSession mints a new 3-character session ID.
func (r *Registry) RegisterSession(externalSessionID, query string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.generateBaseID()
	r.artifacts[id] = &Entry{
		Type:       TypeSession,
		Query:      query,
		ExternalID: externalSessionID,
		CreatedAt:  r.now(),
	}
	r.save()
	return id
}

// RegisterDocument mints "<parent>-NN" under an existing session.
func (r *Registry) RegisterDocument(parentID, externalDocID, title string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.artifacts[parentID]
	if !ok {
		return "", fmt.Errorf("parent %s not registered", parentID)
	}
	if parent.Type != TypeSession {
		return "", fmt.Errorf("parent %s is a %s, documents attach to sessions", parentID, parent.Type)
	}

	id := fmt.Sprintf("%s-%02d", parentID, r.nextDocumentSeq(parentID))
	r.artifacts[id] = &Entry{
		Type:       TypeDocument,
		ParentID:   parentID,
		Title:      title,
		ExternalID: externalDocID,
		CreatedAt:  r.now(),
	}
	r.save()
	return id, nil
}

// RegisterAudio mints "<parent>-L" (L = A, B, C, ...) under an existing document.
func (r *Registry) RegisterAudio(parentID, notebookTitle, title, localPath string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.artifacts[parentID]
	if !ok {
		return "", fmt.Errorf("parent %s not registered", parentID)
	}
	if parent.Type != TypeDocument {
		return "", fmt.Errorf("parent %s is a %s, audio attaches to documents", parentID, parent.Type)
	}

	letter, err := r.nextAudioLetter(parentID)
	if err != nil {
		return "", err
	}

	id := fmt.Sprintf("%s-%c", parentID, letter)
	r.artifacts[id] = &Entry{
		Type:          TypeAudio,
		ParentID:      parentID,
		Title:         title,
		NotebookTitle: notebookTitle,
		LocalPath:     localPath,
		CreatedAt:     r.now(),
	}
	r.save()
	return id, nil
}

// Get returns the entry for id, or false.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.artifacts[id]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// Lineaged pairs an ID with its entry for lineage results.
type Lineaged struct {
	ID string
	Entry
}

// GetLineage returns the ordered ancestor chain [leaf .. root] for id.
func (r *Registry) GetLineage(id string) ([]Lineaged, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var chain []Lineaged
	currentID := id
	for currentID != "" {
		e, ok := r.artifacts[currentID]
		if !ok {
			return nil, fmt.Errorf("artifact %s not registered", currentID)
		}
		chain = append(chain, Lineaged{ID: currentID, Entry: *e})
		currentID = e.ParentID
	}
	return chain, nil
}

// FindByExternalID returns the ID of the artifact of the given type whose
// external ID matches, or false.
func (r *Registry) FindByExternalID(artifactType, externalID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.artifacts {
		if e.Type == artifactType && e.ExternalID == externalID {
			return id, true
		}
	}
	return "", false
}

// UpdateTitle records the artifact's current display title.
func (r *Registry) UpdateTitle(id, newTitle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.artifacts[id]
	if !ok {
		return fmt.Errorf("artifact %s not registered", id)
	}
	e.Title = newTitle
	r.save()
	return nil
}

// UpdateLocalPath records where a downloaded artifact landed on disk.
func (r *Registry) UpdateLocalPath(id, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.artifacts[id]
	if !ok {
		return fmt.Errorf("artifact %s not registered", id)
	}
	e.LocalPath = path
	r.save()
	return nil
}

// Dirty reports whether the last save failed and the on-disk document is
// behind the in-memory state. Exposed through the readiness probe.
func (r *Registry) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// generateBaseID rejection-samples the alphabet until it finds a
// 3-character ID not already present. Callers hold the mutex.
func (r *Registry) generateBaseID() string {
	for {
		b := make([]byte, 3)
		for i := range b {
			b[i] = alphabet[r.rng.Intn(len(alphabet))]
		}
		id := string(b)
		if _, taken := r.artifacts[id]; !taken {
			return id
		}
	}
}

var (
	docSeqRe      = regexp.MustCompile(`^(\d{2})$`)
	audioLetterRe = regexp.MustCompile(`^([A-Z])$`)
)

// nextDocumentSeq scans sibling IDs with the parent prefix and returns
// max+1. Derived counters survive out-of-order registration and are
// never reused. Callers hold the mutex.
func (r *Registry) nextDocumentSeq(parentID string) int {
	maxSeq := 0
	prefix := parentID + "-"
	for id := range r.artifacts {
		if len(id) <= len(prefix) || id[:len(prefix)] != prefix {
			continue
		}
		m := docSeqRe.FindStringSubmatch(id[len(prefix):])
		if m == nil {
			continue
		}
		seq := int(m[1][0]-'0')*10 + int(m[1][1]-'0')
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1
}

// nextAudioLetter scans sibling IDs and returns the next letter.
func (r *Registry) nextAudioLetter(parentID string) (byte, error) {
	var maxLetter byte
	prefix := parentID + "-"
	for id := range r.artifacts {
		if len(id) <= len(prefix) || id[:len(prefix)] != prefix {
			continue
		}
		m := audioLetterRe.FindStringSubmatch(id[len(prefix):])
		if m == nil {
			continue
		}
		if m[1][0] > maxLetter {
			maxLetter = m[1][0]
		}
	}
	if maxLetter == 0 {
		return 'A', nil
	}
	if maxLetter >= 'Z' {
		return 0, fmt.Errorf("audio suffixes exhausted for %s", parentID)
	}
	return maxLetter + 1, nil
}

// save rewrites the whole registry document. A save failure is logged and
// flags the registry dirty instead of failing the mutation: persistence
// problems must not crash an in-flight pipeline stage. The next
// successful save clears the flag.
func (r *Registry) save() {
	data, err := json.MarshalIndent(registryFile{Artifacts: r.artifacts}, "", "  ")
	if err != nil {
		r.logger.Error("failed to encode registry", "error", err)
		r.dirty = true
		return
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		r.logger.Error("failed to save registry", "path", r.path, "error", err)
		r.dirty = true
		return
	}
	r.dirty = false
}
