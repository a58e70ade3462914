package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/retractd/internal/retraction"
)

// ReplaceClusters swaps the stored clusters for a freshly assembled set.
func (s *Store) ReplaceClusters(ctx context.Context, clusters []retraction.Cluster) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM clusters"); err != nil {
			return fmt.Errorf("clearing clusters: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO clusters (id, size, member_chain_ids, entity_ids, relations, avg_confidence,
				avg_severity, common_reason_code, common_reason, attributes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing cluster insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range clusters {
			members, err := marshalJSON(c.MemberChainIDs, "[]")
			if err != nil {
				return err
			}
			entityIDs, err := marshalJSON(c.EntityIDs, "[]")
			if err != nil {
				return err
			}
			relations, err := marshalJSON(c.Relations, "[]")
			if err != nil {
				return err
			}
			attrs, err := marshalJSON(c.Attributes, "{}")
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, c.ID, c.Size, members, entityIDs, relations, c.AvgConfidence,
				c.AvgSeverity, c.CommonReasonCode, c.CommonReason, attrs, now); err != nil {
				return fmt.Errorf("saving cluster %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// ListClusters returns stored clusters, largest first.
func (s *Store) ListClusters(ctx context.Context) ([]retraction.Cluster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, size, member_chain_ids, entity_ids, relations, avg_confidence, avg_severity,
			common_reason_code, common_reason, attributes
		FROM clusters ORDER BY size DESC, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying clusters: %w", err)
	}
	defer rows.Close()

	var clusters []retraction.Cluster
	for rows.Next() {
		var c retraction.Cluster
		var members, entityIDs, relations, attrs string
		if err := rows.Scan(&c.ID, &c.Size, &members, &entityIDs, &relations, &c.AvgConfidence,
			&c.AvgSeverity, &c.CommonReasonCode, &c.CommonReason, &attrs); err != nil {
			return nil, fmt.Errorf("scanning cluster: %w", err)
		}
		for _, col := range []struct {
			raw string
			dst any
		}{
			{members, &c.MemberChainIDs},
			{entityIDs, &c.EntityIDs},
			{relations, &c.Relations},
			{attrs, &c.Attributes},
		} {
			if err := unmarshalJSON(col.raw, col.dst); err != nil {
				return nil, fmt.Errorf("unmarshaling cluster %s: %w", c.ID, err)
			}
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating clusters: %w", err)
	}
	return clusters, nil
}
