package registry

import (
	"log/slog"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Load(filepath.Join(t.TempDir(), "artifacts.json"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return r
}

func TestRegisterSession_MintsThreeCharID(t *testing.T) {
	r := newTestRegistry(t)

	id := r.RegisterSession("ext1", "q")
	assert.Len(t, id, 3)
	for _, c := range id {
		assert.Contains(t, alphabet, string(c), "ID char outside alphabet")
	}

	e, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, TypeSession, e.Type)
	assert.Equal(t, "ext1", e.ExternalID)
	assert.Equal(t, "q", e.Query)
}

func TestHierarchicalIDs(t *testing.T) {
	r := newTestRegistry(t)

	session := r.RegisterSession("ext1", "q")

	doc1, err := r.RegisterDocument(session, "d1", "T1")
	require.NoError(t, err)
	assert.Equal(t, session+"-01", doc1)

	doc2, err := r.RegisterDocument(session, "d2", "T2")
	require.NoError(t, err)
	assert.Equal(t, session+"-02", doc2)

	audio1, err := r.RegisterAudio(doc1, "nb", "T", "")
	require.NoError(t, err)
	assert.Equal(t, doc1+"-A", audio1)

	audio2, err := r.RegisterAudio(doc1, "nb", "T", "")
	require.NoError(t, err)
	assert.Equal(t, doc1+"-B", audio2)
}

func TestGetLineage_OrderedLeafToRoot(t *testing.T) {
	r := newTestRegistry(t)

	session := r.RegisterSession("ext1", "q")
	doc, err := r.RegisterDocument(session, "d1", "T1")
	require.NoError(t, err)
	audio, err := r.RegisterAudio(doc, "nb", "T", "")
	require.NoError(t, err)

	chain, err := r.GetLineage(audio)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, audio, chain[0].ID)
	assert.Equal(t, TypeAudio, chain[0].Type)
	assert.Equal(t, doc, chain[1].ID)
	assert.Equal(t, TypeDocument, chain[1].Type)
	assert.Equal(t, session, chain[2].ID)
	assert.Equal(t, TypeSession, chain[2].Type)
}

func TestRegisterDocument_UnknownOrWrongParent(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.RegisterDocument("ZZZ", "d", "T")
	assert.Error(t, err)

	session := r.RegisterSession("ext1", "q")
	doc, err := r.RegisterDocument(session, "d", "T")
	require.NoError(t, err)

	// Documents attach to sessions, not to other documents.
	_, err = r.RegisterDocument(doc, "d2", "T2")
	assert.Error(t, err)
}

func TestSequenceDerivedFromSiblings(t *testing.T) {
	r := newTestRegistry(t)

	session := r.RegisterSession("ext1", "q")
	for i := 1; i <= 11; i++ {
		id, err := r.RegisterDocument(session, "d", "T")
		require.NoError(t, err)
		if i < 10 {
			assert.True(t, strings.HasSuffix(id, "-0"+string(rune('0'+i))), "id %s at seq %d", id, i)
		}
	}

	// The 11th document crosses the zero-padding boundary.
	id, ok := r.Get(session + "-11")
	require.True(t, ok, "expected %s-11 to exist", session)
	assert.Equal(t, TypeDocument, id.Type)
}

func TestFindByExternalID(t *testing.T) {
	r := newTestRegistry(t)

	session := r.RegisterSession("ext-abc", "q")
	doc, err := r.RegisterDocument(session, "doc-xyz", "T")
	require.NoError(t, err)

	found, ok := r.FindByExternalID(TypeDocument, "doc-xyz")
	require.True(t, ok)
	assert.Equal(t, doc, found)

	_, ok = r.FindByExternalID(TypeSession, "doc-xyz")
	assert.False(t, ok, "type filter must apply")
}

func TestUpdateTitleAndLocalPath(t *testing.T) {
	r := newTestRegistry(t)

	session := r.RegisterSession("ext1", "q")
	doc, err := r.RegisterDocument(session, "d1", "old title")
	require.NoError(t, err)

	require.NoError(t, r.UpdateTitle(doc, "[XK-01] new title"))
	e, _ := r.Get(doc)
	assert.Equal(t, "[XK-01] new title", e.Title)

	audio, err := r.RegisterAudio(doc, "nb", "T", "")
	require.NoError(t, err)
	require.NoError(t, r.UpdateLocalPath(audio, "/data/audio/a.mp3"))
	e, _ = r.Get(audio)
	assert.Equal(t, "/data/audio/a.mp3", e.LocalPath)

	assert.Error(t, r.UpdateTitle("missing", "x"))
}

func TestPersistence_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifacts.json")
	logger := slog.New(slog.DiscardHandler)

	r, err := Load(path, logger)
	require.NoError(t, err)

	session := r.RegisterSession("ext1", "q")
	doc, err := r.RegisterDocument(session, "d1", "T1")
	require.NoError(t, err)
	assert.False(t, r.Dirty())

	// A fresh load sees everything, and counters pick up where they left off.
	reloaded, err := Load(path, logger)
	require.NoError(t, err)

	e, ok := reloaded.Get(doc)
	require.True(t, ok)
	assert.Equal(t, session, e.ParentID)

	doc2, err := reloaded.RegisterDocument(session, "d2", "T2")
	require.NoError(t, err)
	assert.Equal(t, session+"-02", doc2)
}

func TestGenerateBaseID_NeverCollides(t *testing.T) {
	r := newTestRegistry(t)
	r.rng = rand.New(rand.NewSource(42))

	// Pre-populate well past the point where rejection sampling has to
	// retry (10k of 35,937 possible IDs).
	for len(r.artifacts) < 10000 {
		b := make([]byte, 3)
		for i := range b {
			b[i] = alphabet[r.rng.Intn(len(alphabet))]
		}
		r.artifacts[string(b)] = &Entry{Type: TypeSession}
	}

	for i := 0; i < 1000; i++ {
		id := r.generateBaseID()
		if _, taken := r.artifacts[id]; taken {
			t.Fatalf("generateBaseID returned an existing ID %s", id)
		}
		r.artifacts[id] = &Entry{Type: TypeSession}
	}
}
