package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"researchplane/internal/store"

	"github.com/lib/pq"
)

// maxLineageDepth bounds the parent walk so a corrupted edge set
// cannot loop forever.
const maxLineageDepth = 32

// CreateEntity inserts a new graph node.
func (s *Store) CreateEntity(ctx context.Context, tx store.DBTransaction, e *store.Entity) error {
	query := `
		INSERT INTO entities (id, type, name, properties, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	props := e.Properties
	if len(props) == 0 {
		props = []byte("{}")
	}

	_, err := s.getExecutor(tx).ExecContext(ctx, query,
		e.ID,
		e.Type,
		e.Name,
		[]byte(props),
		e.CreatedAt,
	)
	return err
}

// GetEntityByID returns an entity by its ID.
func (s *Store) GetEntityByID(ctx context.Context, id string) (*store.Entity, error) {
	query := "SELECT id, type, name, properties, created_at FROM entities WHERE id = $1"
	return s.scanEntity(s.db.QueryRowContext(ctx, query, id))
}

// FindEntities returns entities filtered by type and/or name.
func (s *Store) FindEntities(ctx context.Context, types []string, name string) ([]*store.Entity, error) {
	query := "SELECT id, type, name, properties, created_at FROM entities"

	var args []interface{}
	var clauses []string
	if len(types) > 0 {
		args = append(args, pq.Array(types))
		clauses = append(clauses, fmt.Sprintf("type = ANY($%d)", len(args)))
	}
	if name != "" {
		args = append(args, name)
		clauses = append(clauses, fmt.Sprintf("name = $%d", len(args)))
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find entities query failed: %w", err)
	}
	defer rows.Close()

	var entities []*store.Entity
	for rows.Next() {
		e, err := s.scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("find entities scan failed: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// CreateRelationship inserts a new edge between two existing entities.
func (s *Store) CreateRelationship(ctx context.Context, tx store.DBTransaction, r *store.Relationship) error {
	query := `
		INSERT INTO relationships (from_id, to_id, type, properties, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	var props interface{}
	if len(r.Properties) > 0 {
		props = []byte(r.Properties)
	}

	_, err := s.getExecutor(tx).ExecContext(ctx, query,
		r.FromID,
		r.ToID,
		r.Type,
		props,
		r.CreatedAt,
	)
	return err
}

// ListRelationshipsFrom returns edges of the given type starting at fromID.
func (s *Store) ListRelationshipsFrom(ctx context.Context, fromID, relType string) ([]*store.Relationship, error) {
	query := `
		SELECT from_id, to_id, type, properties, created_at
		FROM relationships
		WHERE from_id = $1 AND type = $2
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, fromID, relType)
	if err != nil {
		return nil, fmt.Errorf("list relationships query failed: %w", err)
	}
	defer rows.Close()

	var rels []*store.Relationship
	for rows.Next() {
		var r store.Relationship
		var props []byte
		if err := rows.Scan(&r.FromID, &r.ToID, &r.Type, &props, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("list relationships scan failed: %w", err)
		}
		r.Properties = props
		rels = append(rels, &r)
	}
	return rels, rows.Err()
}

// Lineage walks derived_from edges from a leaf entity up to its root,
// returning the ordered chain [leaf .. root].
func (s *Store) Lineage(ctx context.Context, leafID string) ([]*store.Entity, error) {
	leaf, err := s.GetEntityByID(ctx, leafID)
	if err != nil {
		return nil, err
	}

	chain := []*store.Entity{leaf}
	currentID := leafID

	for depth := 0; depth < maxLineageDepth; depth++ {
		rels, err := s.ListRelationshipsFrom(ctx, currentID, store.RelDerivedFrom)
		if err != nil {
			return nil, err
		}
		if len(rels) == 0 {
			return chain, nil
		}

		// A derived artifact has exactly one parent edge.
		parent, err := s.GetEntityByID(ctx, rels[0].ToID)
		if err != nil {
			return nil, fmt.Errorf("lineage parent %s: %w", rels[0].ToID, err)
		}
		chain = append(chain, parent)
		currentID = parent.ID
	}

	return nil, fmt.Errorf("lineage walk exceeded %d levels from %s", maxLineageDepth, leafID)
}

func (s *Store) scanEntity(row rowScanner) (*store.Entity, error) {
	var e store.Entity
	var props []byte

	err := row.Scan(&e.ID, &e.Type, &e.Name, &props, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	e.Properties = props
	return &e, nil
}
