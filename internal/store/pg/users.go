package pg

import (
	"context"
	"fmt"

	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/estate"
)

const userColumns = `id, community_id, email, name, phone, role, password_hash, created_at, updated_at`

func scanUser(row scanner) (estate.User, error) {
	var (
		u    estate.User
		role string
	)
	if err := row.Scan(&u.ID, &u.CommunityID, &u.Email, &u.Name, &u.Phone, &role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return estate.User{}, err
	}
	r, err := auth.ParseRole(role)
	if err != nil {
		return estate.User{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	u.Role = r
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u estate.User) (estate.User, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into users (community_id, email, name, phone, role, password_hash)
		values ($1, $2, $3, $4, $5, $6)
		returning `+userColumns,
		u.CommunityID, u.Email, u.Name, u.Phone, u.Role.String(), u.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		return estate.User{}, mapError(err)
	}
	return created, nil
}

func (s *Store) User(ctx context.Context, id int64) (estate.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
	if err != nil {
		return estate.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (estate.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where lower(email) = lower($1)`, email))
	if err != nil {
		return estate.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, communityID int64) ([]estate.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+`
		from users
		where community_id = $1
		order by id
	`, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]estate.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUser saves profile fields. An empty PasswordHash keeps the stored one.
func (s *Store) UpdateUser(ctx context.Context, u estate.User) (estate.User, error) {
	row := s.db.QueryRowContext(ctx, `
		update users
		set email = $2,
		    name = $3,
		    phone = $4,
		    password_hash = coalesce($5, password_hash),
		    updated_at = now()
		where id = $1
		returning `+userColumns,
		u.ID, u.Email, u.Name, u.Phone, nullString(u.PasswordHash))
	updated, err := scanUser(row)
	if err != nil {
		return estate.User{}, mapError(err)
	}
	return updated, nil
}

func (s *Store) DeleteUser(ctx context.Context, communityID, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1 and community_id = $2`, id, communityID)
	if err != nil {
		return mapError(err)
	}
	return expectOne(res)
}
