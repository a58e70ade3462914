package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/retractd/internal/embeddings"
	"github.com/fyrsmithlabs/retractd/internal/retraction"
)

const paperColumns = `id, title, authors, doi, date, journal, subjects, retraction_reason, abstract, vector, attributes`

// SavePaper inserts or replaces a paper.
func (s *Store) SavePaper(ctx context.Context, p *retraction.Paper) error {
	authors, err := marshalJSON(p.Authors, "[]")
	if err != nil {
		return fmt.Errorf("marshalling authors: %w", err)
	}
	subjects, err := marshalJSON(p.Subjects, "[]")
	if err != nil {
		return fmt.Errorf("marshalling subjects: %w", err)
	}
	attrs, err := marshalJSON(p.Attributes, "{}")
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO papers (`+paperColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			authors = excluded.authors,
			doi = excluded.doi,
			date = excluded.date,
			journal = excluded.journal,
			subjects = excluded.subjects,
			retraction_reason = excluded.retraction_reason,
			abstract = excluded.abstract,
			vector = COALESCE(excluded.vector, papers.vector),
			attributes = excluded.attributes,
			updated_at = excluded.updated_at
	`, p.ID, p.Title, authors, p.DOI, p.Date, p.Journal, subjects, p.RetractionReason, p.Abstract,
		vectorArg(p.Vector), attrs, now, now)
	if err != nil {
		return fmt.Errorf("saving paper: %w", err)
	}
	return nil
}

// SetPaperVector stores the embedding of a paper.
func (s *Store) SetPaperVector(ctx context.Context, id string, vec []float32) error {
	res, err := s.db.ExecContext(ctx, "UPDATE papers SET vector = ?, updated_at = ? WHERE id = ?",
		vectorArg(vec), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating paper vector: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("paper %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetPaper returns a paper by ID, accepting the hyphen-stripped form of a
// UUID as well.
func (s *Store) GetPaper(ctx context.Context, id string) (*retraction.Paper, error) {
	p, err := scanPaper(s.db.QueryRowContext(ctx, "SELECT "+paperColumns+" FROM papers WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) && retraction.IsUUID(id) {
		p, err = s.paperByStrippedID(ctx, id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("paper %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning paper: %w", err)
	}
	return p, nil
}

func (s *Store) paperByStrippedID(ctx context.Context, id string) (*retraction.Paper, error) {
	papers, err := s.ListPapers(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range papers {
		if retraction.MatchID(p.ID, id) {
			return p, nil
		}
	}
	return nil, sql.ErrNoRows
}

// ListPapers returns every paper ordered by ID.
func (s *Store) ListPapers(ctx context.Context) ([]*retraction.Paper, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+paperColumns+" FROM papers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var papers []*retraction.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating papers: %w", err)
	}
	return papers, nil
}

// DeletePaper removes a paper with its entities and chains.
func (s *Store) DeletePaper(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM chains WHERE paper_id = ?",
			"DELETE FROM entities WHERE paper_id = ?",
			"DELETE FROM papers WHERE id = ?",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("deleting paper: %w", err)
			}
		}
		return nil
	})
}

func scanPaper(row scanner) (*retraction.Paper, error) {
	var p retraction.Paper
	var authors, subjects, attrs string
	var vector []byte
	if err := row.Scan(&p.ID, &p.Title, &authors, &p.DOI, &p.Date, &p.Journal, &subjects,
		&p.RetractionReason, &p.Abstract, &vector, &attrs); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(authors, &p.Authors); err != nil {
		return nil, fmt.Errorf("unmarshaling authors: %w", err)
	}
	if err := unmarshalJSON(subjects, &p.Subjects); err != nil {
		return nil, fmt.Errorf("unmarshaling subjects: %w", err)
	}
	if err := unmarshalJSON(attrs, &p.Attributes); err != nil {
		return nil, fmt.Errorf("unmarshaling attributes: %w", err)
	}
	vec, err := embeddings.DecodeVector(vector)
	if err != nil {
		return nil, fmt.Errorf("decoding vector: %w", err)
	}
	p.Vector = vec
	return &p, nil
}
