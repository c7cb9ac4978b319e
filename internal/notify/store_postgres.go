package notify

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct{ DB *pgxpool.Pool }

func (s *PostgresStore) Insert(ctx context.Context, n Notification) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO notifications(id, user_id, title, body, type, link, read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		n.ID, n.UserID, n.Title, n.Body, string(n.Type), n.Link, n.Read, n.CreatedAt)
	return err
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.Query(ctx, `SELECT id, user_id, title, body, type, link, read, created_at
		FROM notifications WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Type, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PushEndpoint(ctx context.Context, userID string) (string, error) {
	var endpoint string
	err := s.DB.QueryRow(ctx, `SELECT endpoint FROM push_endpoints WHERE user_id=$1`, userID).Scan(&endpoint)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return endpoint, err
}
