package pg

import (
	"context"

	"sigepa.cl/internal/estate"
)

const contractColumns = `id, community_id, parcel_id, user_id, title, starts_on, ends_on, amount, created_at`

func scanContract(row scanner) (estate.Contract, error) {
	var c estate.Contract
	err := row.Scan(&c.ID, &c.CommunityID, &c.ParcelID, &c.UserID, &c.Title, &c.StartsOn, &c.EndsOn, &c.Amount, &c.CreatedAt)
	return c, err
}

func (s *Store) CreateContract(ctx context.Context, c estate.Contract) (estate.Contract, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into contracts (community_id, parcel_id, user_id, title, starts_on, ends_on, amount)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning `+contractColumns,
		c.CommunityID, c.ParcelID, c.UserID, c.Title, c.StartsOn, c.EndsOn, c.Amount)
	created, err := scanContract(row)
	if err != nil {
		return estate.Contract{}, mapError(err)
	}
	return created, nil
}

func (s *Store) Contract(ctx context.Context, id int64) (estate.Contract, error) {
	c, err := scanContract(s.db.QueryRowContext(ctx, `select `+contractColumns+` from contracts where id = $1`, id))
	if err != nil {
		return estate.Contract{}, mapError(err)
	}
	return c, nil
}

func (s *Store) ListContracts(ctx context.Context, communityID int64) ([]estate.Contract, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+contractColumns+`
		from contracts
		where community_id = $1
		order by id
	`, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]estate.Contract, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteContract(ctx context.Context, communityID, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from contracts where id = $1 and community_id = $2`, id, communityID)
	if err != nil {
		return mapError(err)
	}
	return expectOne(res)
}
