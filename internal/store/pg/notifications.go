package pg

import (
	"context"

	"sigepa.cl/internal/estate"
)

const notificationColumns = `id, community_id, author_id, title, body, priority, created_at`

func scanNotification(row scanner) (estate.Notification, error) {
	var n estate.Notification
	err := row.Scan(&n.ID, &n.CommunityID, &n.AuthorID, &n.Title, &n.Body, &n.Priority, &n.CreatedAt)
	return n, err
}

func (s *Store) CreateNotification(ctx context.Context, n estate.Notification) (estate.Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into notifications (community_id, author_id, title, body, priority)
		values ($1, $2, $3, $4, $5)
		returning `+notificationColumns,
		n.CommunityID, n.AuthorID, n.Title, n.Body, n.Priority)
	created, err := scanNotification(row)
	if err != nil {
		return estate.Notification{}, mapError(err)
	}
	return created, nil
}

func (s *Store) Notification(ctx context.Context, id int64) (estate.Notification, error) {
	n, err := scanNotification(s.db.QueryRowContext(ctx, `select `+notificationColumns+` from notifications where id = $1`, id))
	if err != nil {
		return estate.Notification{}, mapError(err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, communityID int64, limit int) ([]estate.Notification, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+notificationColumns+`
		from notifications
		where community_id = $1
		order by created_at desc, id desc
		limit $2
	`, communityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]estate.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) DeleteNotification(ctx context.Context, communityID, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from notifications where id = $1 and community_id = $2`, id, communityID)
	if err != nil {
		return mapError(err)
	}
	return expectOne(res)
}
