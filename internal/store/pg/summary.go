package pg

import (
	"context"

	"sigepa.cl/internal/estate"
)

// Summary aggregates one community in two round trips.
func (s *Store) Summary(ctx context.Context, communityID int64) (estate.Summary, error) {
	sum := estate.Summary{CommunityID: communityID, Payments: map[estate.PaymentStatus]int{}}
	err := s.db.QueryRowContext(ctx, `
		select
			(select count(*) from parcels where community_id = $1),
			(select count(*) from parcels where community_id = $1 and user_id is not null),
			(select count(*) from users where community_id = $1),
			(select count(*) from expenses where community_id = $1)
	`, communityID).Scan(&sum.Parcels, &sum.AssignedParcels, &sum.Users, &sum.Expenses)
	if err != nil {
		return estate.Summary{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select status, count(*), coalesce(sum(amount), 0)
		from payments
		where community_id = $1
		group by status
	`, communityID)
	if err != nil {
		return estate.Summary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
			amount int64
		)
		if err := rows.Scan(&status, &count, &amount); err != nil {
			return estate.Summary{}, err
		}
		st := estate.PaymentStatus(status)
		sum.Payments[st] = count
		if st == estate.PaymentPaid {
			sum.AmountCollected += amount
		} else {
			sum.AmountPending += amount
		}
	}
	return sum, rows.Err()
}
