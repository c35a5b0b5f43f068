package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"researchplane/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
)

func entityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "type", "name", "properties", "created_at"})
}

func relRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"from_id", "to_id", "type", "properties", "created_at"})
}

func TestCreateEntity_DefaultsProperties(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	e := &store.Entity{ID: "XKR", Type: "session", Name: "research session", CreatedAt: time.Now()}

	mock.ExpectExec(`INSERT INTO entities`).
		WithArgs(e.ID, e.Type, e.Name, []byte(`{}`), e.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.CreateEntity(context.Background(), nil, e); err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestLineage_WalksToRoot(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	now := time.Now()

	// audio -> document -> session
	mock.ExpectQuery(`FROM entities WHERE id`).
		WithArgs("XKR-01-A").
		WillReturnRows(entityRows().AddRow("XKR-01-A", "audio", "overview", []byte(`{}`), now))

	mock.ExpectQuery(`FROM relationships`).
		WithArgs("XKR-01-A", store.RelDerivedFrom).
		WillReturnRows(relRows().AddRow("XKR-01-A", "XKR-01", store.RelDerivedFrom, nil, now))
	mock.ExpectQuery(`FROM entities WHERE id`).
		WithArgs("XKR-01").
		WillReturnRows(entityRows().AddRow("XKR-01", "document", "report", []byte(`{}`), now))

	mock.ExpectQuery(`FROM relationships`).
		WithArgs("XKR-01", store.RelDerivedFrom).
		WillReturnRows(relRows().AddRow("XKR-01", "XKR", store.RelDerivedFrom, nil, now))
	mock.ExpectQuery(`FROM entities WHERE id`).
		WithArgs("XKR").
		WillReturnRows(entityRows().AddRow("XKR", "session", "research session", []byte(`{}`), now))

	mock.ExpectQuery(`FROM relationships`).
		WithArgs("XKR", store.RelDerivedFrom).
		WillReturnRows(relRows())

	chain, err := s.Lineage(context.Background(), "XKR-01-A")
	if err != nil {
		t.Fatalf("Lineage failed: %v", err)
	}

	want := []string{"XKR-01-A", "XKR-01", "XKR"}
	if len(chain) != len(want) {
		t.Fatalf("expected chain of %d, got %d", len(want), len(chain))
	}
	for i, id := range want {
		if chain[i].ID != id {
			t.Errorf("chain[%d] = %s, want %s", i, chain[i].ID, id)
		}
	}
}

func TestLineage_LeafNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`FROM entities WHERE id`).
		WithArgs("nope").
		WillReturnRows(entityRows())

	_, err := s.Lineage(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want store.ErrNotFound", err)
	}
}
