package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/retractd/internal/embeddings"
	"github.com/fyrsmithlabs/retractd/internal/retraction"
)

const entityColumns = `id, paper_id, text, category, relevance_score, potential_reason, context, vector, attributes`

// SaveEntities inserts or replaces entities in one transaction.
func (s *Store) SaveEntities(ctx context.Context, entities []*retraction.Entity) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO entities (`+entityColumns+`, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				paper_id = excluded.paper_id,
				text = excluded.text,
				category = excluded.category,
				relevance_score = excluded.relevance_score,
				potential_reason = excluded.potential_reason,
				context = excluded.context,
				vector = COALESCE(excluded.vector, entities.vector),
				attributes = excluded.attributes
		`)
		if err != nil {
			return fmt.Errorf("preparing entity insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entities {
			attrs, err := marshalJSON(e.Attributes, "{}")
			if err != nil {
				return fmt.Errorf("marshalling attributes of %s: %w", e.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, e.ID, e.PaperID, e.Text, string(e.Category), e.RelevanceScore,
				e.PotentialReason, e.Context, vectorArg(e.Vector), attrs, now); err != nil {
				return fmt.Errorf("saving entity %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// SetEntityVector stores the embedding of an entity.
func (s *Store) SetEntityVector(ctx context.Context, id string, vec []float32) error {
	res, err := s.db.ExecContext(ctx, "UPDATE entities SET vector = ? WHERE id = ?", vectorArg(vec), id)
	if err != nil {
		return fmt.Errorf("updating entity vector: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListEntities returns the entities of a paper, or every entity when
// paperID is empty.
func (s *Store) ListEntities(ctx context.Context, paperID string) ([]*retraction.Entity, error) {
	query := "SELECT " + entityColumns + " FROM entities"
	var args []any
	if paperID != "" {
		query += " WHERE paper_id = ?"
		args = append(args, paperID)
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []*retraction.Entity
	for rows.Next() {
		var e retraction.Entity
		var category, attrs string
		var vector []byte
		if err := rows.Scan(&e.ID, &e.PaperID, &e.Text, &category, &e.RelevanceScore, &e.PotentialReason,
			&e.Context, &vector, &attrs); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		e.Category = retraction.Category(category)
		if err := unmarshalJSON(attrs, &e.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshaling attributes of %s: %w", e.ID, err)
		}
		if e.Vector, err = embeddings.DecodeVector(vector); err != nil {
			return nil, fmt.Errorf("decoding vector of %s: %w", e.ID, err)
		}
		entities = append(entities, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}
