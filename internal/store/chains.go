package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/retractd/internal/retraction"
)

const chainColumns = `id, paper_id, type, entity_ids, relationship_ids, reasoning_steps, confidence_score,
	frequency, severity_level, overall_explanation, reason_codes, attributes`

// SaveChains inserts or replaces chains in one transaction.
func (s *Store) SaveChains(ctx context.Context, chains []*retraction.Chain) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO chains (`+chainColumns+`, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing chain insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range chains {
			cols, err := chainJSON(c)
			if err != nil {
				return fmt.Errorf("marshalling chain %s: %w", c.ID, err)
			}
			var freq sql.NullFloat64
			if c.Frequency != nil {
				freq = sql.NullFloat64{Float64: *c.Frequency, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, c.ID, c.PaperID, c.Type, cols[0], cols[1], cols[2],
				c.ConfidenceScore, freq, c.SeverityLevel, c.OverallExplanation, cols[3], cols[4], now); err != nil {
				return fmt.Errorf("saving chain %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

func chainJSON(c *retraction.Chain) ([5]string, error) {
	var out [5]string
	values := []struct {
		v     any
		empty string
	}{
		{c.EntityIDs, "[]"},
		{c.RelationshipIDs, "[]"},
		{c.ReasoningSteps, "[]"},
		{c.ReasonCodes, "[]"},
		{c.Attributes, "{}"},
	}
	for i, v := range values {
		s, err := marshalJSON(v.v, v.empty)
		if err != nil {
			return out, err
		}
		out[i] = s
	}
	return out, nil
}

// ListChains returns the chains of a paper, or every chain when paperID is
// empty.
func (s *Store) ListChains(ctx context.Context, paperID string) ([]*retraction.Chain, error) {
	query := "SELECT " + chainColumns + " FROM chains"
	var args []any
	if paperID != "" {
		query += " WHERE paper_id = ?"
		args = append(args, paperID)
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("querying chains: %w", err)
	}
	defer rows.Close()

	var chains []*retraction.Chain
	for rows.Next() {
		var c retraction.Chain
		var entityIDs, relIDs, steps, codes, attrs string
		var freq sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.PaperID, &c.Type, &entityIDs, &relIDs, &steps, &c.ConfidenceScore,
			&freq, &c.SeverityLevel, &c.OverallExplanation, &codes, &attrs); err != nil {
			return nil, fmt.Errorf("scanning chain: %w", err)
		}
		for _, col := range []struct {
			raw string
			dst any
		}{
			{entityIDs, &c.EntityIDs},
			{relIDs, &c.RelationshipIDs},
			{steps, &c.ReasoningSteps},
			{codes, &c.ReasonCodes},
			{attrs, &c.Attributes},
		} {
			if err := unmarshalJSON(col.raw, col.dst); err != nil {
				return nil, fmt.Errorf("unmarshaling chain %s: %w", c.ID, err)
			}
		}
		if freq.Valid {
			f := freq.Float64
			c.Frequency = &f
		}
		chains = append(chains, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chains: %w", err)
	}
	return chains, nil
}
