package store

import (
	"context"
	"fmt"

	"github.com/roach88/slim/internal/slim"
)

// Payload returns the stored bytes for hash, verified against it.
func (s *Store) Payload(ctx context.Context, hash string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM payloads WHERE hash = ?`, hash,
	).Scan(&body)
	if isNotFound(err) {
		return nil, fmt.Errorf("payload %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("payload %s: %w", hash, err)
	}
	if got := slim.HashPayload(body); got != hash {
		return nil, fmt.Errorf("payload %s: got %s: %w", hash, got, ErrCorrupt)
	}
	return body, nil
}

// Checkpoint returns the checkpoint row with the given ID.
func (s *Store) Checkpoint(ctx context.Context, id string) (Checkpoint, error) {
	var cp Checkpoint
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key, seq, payload_hash
		FROM checkpoints
		WHERE id = ?
	`, id).Scan(&cp.ID, &cp.Key, &cp.Seq, &cp.Hash)
	if isNotFound(err) {
		return Checkpoint{}, fmt.Errorf("checkpoint %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint %s: %w", id, err)
	}
	return cp, nil
}

// Load returns the expression saved under checkpoint id.
func (s *Store) Load(ctx context.Context, id string) (slim.Expression, error) {
	cp, err := s.Checkpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expression(ctx, cp)
}

// Latest returns the newest checkpoint of key and its expression.
func (s *Store) Latest(ctx context.Context, key string) (Checkpoint, slim.Expression, error) {
	var cp Checkpoint
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key, seq, payload_hash
		FROM checkpoints
		WHERE key = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, key).Scan(&cp.ID, &cp.Key, &cp.Seq, &cp.Hash)
	if isNotFound(err) {
		return Checkpoint{}, nil, fmt.Errorf("latest %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return Checkpoint{}, nil, fmt.Errorf("latest %s: %w", key, err)
	}
	e, err := s.expression(ctx, cp)
	if err != nil {
		return Checkpoint{}, nil, err
	}
	return cp, e, nil
}

// History returns all checkpoints of key, oldest first.
// Ordered by seq ASC, id ASC COLLATE BINARY.
func (s *Store) History(ctx context.Context, key string) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, seq, payload_hash
		FROM checkpoints
		WHERE key = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", key, err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		if err := rows.Scan(&cp.ID, &cp.Key, &cp.Seq, &cp.Hash); err != nil {
			return nil, fmt.Errorf("history %s: scan: %w", key, err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history %s: %w", key, err)
	}
	return out, nil
}

func (s *Store) expression(ctx context.Context, cp Checkpoint) (slim.Expression, error) {
	body, err := s.Payload(ctx, cp.Hash)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", cp.ID, err)
	}
	e, err := slim.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: decode: %w", cp.ID, err)
	}
	if s.cache != nil {
		if e, err = s.cache.Intern(e); err != nil {
			return nil, fmt.Errorf("checkpoint %s: intern: %w", cp.ID, err)
		}
	}
	s.logger.Debug("loaded checkpoint", "key", cp.Key, "seq", cp.Seq, "id", cp.ID)
	return e, nil
}
