package pg

import (
	"context"
	"database/sql"

	"sigepa.cl/internal/estate"
)

const parcelColumns = `id, community_id, user_id, number, area_m2, lat, lng, status, created_at`

func scanParcel(row scanner) (estate.Parcel, error) {
	var (
		p     estate.Parcel
		owner sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.CommunityID, &owner, &p.Number, &p.AreaM2, &p.Lat, &p.Lng, &p.Status, &p.CreatedAt); err != nil {
		return estate.Parcel{}, err
	}
	p.UserID = owner.Int64
	return p, nil
}

func (s *Store) CreateParcel(ctx context.Context, p estate.Parcel) (estate.Parcel, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into parcels (community_id, user_id, number, area_m2, lat, lng, status)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning `+parcelColumns,
		p.CommunityID, nullInt64(p.UserID), p.Number, p.AreaM2, p.Lat, p.Lng, p.Status)
	created, err := scanParcel(row)
	if err != nil {
		return estate.Parcel{}, mapError(err)
	}
	return created, nil
}

func (s *Store) Parcel(ctx context.Context, id int64) (estate.Parcel, error) {
	p, err := scanParcel(s.db.QueryRowContext(ctx, `select `+parcelColumns+` from parcels where id = $1`, id))
	if err != nil {
		return estate.Parcel{}, mapError(err)
	}
	return p, nil
}

func (s *Store) ListParcels(ctx context.Context, communityID int64) ([]estate.Parcel, error) {
	return s.listParcels(ctx, `select `+parcelColumns+` from parcels where community_id = $1 order by id`, communityID)
}

func (s *Store) ListParcelsByUser(ctx context.Context, userID int64) ([]estate.Parcel, error) {
	return s.listParcels(ctx, `select `+parcelColumns+` from parcels where user_id = $1 order by id`, userID)
}

func (s *Store) listParcels(ctx context.Context, query string, arg int64) ([]estate.Parcel, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]estate.Parcel, 0)
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeleteParcel(ctx context.Context, communityID, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from parcels where id = $1 and community_id = $2`, id, communityID)
	if err != nil {
		return mapError(err)
	}
	return expectOne(res)
}
