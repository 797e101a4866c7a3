package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sigepa.cl/internal/estate"
)

const paymentColumns = `id, community_id, expense_id, parcel_id, user_id, amount, status, reference, gateway_token, created_at, paid_at`

func scanPayment(row scanner) (estate.Payment, error) {
	var (
		p      estate.Payment
		status string
		ref    sql.NullString
		token  sql.NullString
		paidAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.CommunityID, &p.ExpenseID, &p.ParcelID, &p.UserID, &p.Amount, &status, &ref, &token, &p.CreatedAt, &paidAt); err != nil {
		return estate.Payment{}, err
	}
	p.Status = estate.PaymentStatus(status)
	p.Reference = ref.String
	p.GatewayToken = token.String
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return p, nil
}

func (s *Store) Payment(ctx context.Context, id int64) (estate.Payment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx, `select `+paymentColumns+` from payments where id = $1`, id))
	if err != nil {
		return estate.Payment{}, mapError(err)
	}
	return p, nil
}

func (s *Store) PaymentByToken(ctx context.Context, token string) (estate.Payment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx, `select `+paymentColumns+` from payments where gateway_token = $1`, token))
	if err != nil {
		return estate.Payment{}, mapError(err)
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, communityID int64) ([]estate.Payment, error) {
	return s.listPayments(ctx, `select `+paymentColumns+` from payments where community_id = $1 order by id`, communityID)
}

func (s *Store) ListPaymentsByUser(ctx context.Context, userID int64) ([]estate.Payment, error) {
	return s.listPayments(ctx, `select `+paymentColumns+` from payments where user_id = $1 order by id`, userID)
}

func (s *Store) listPayments(ctx context.Context, query string, arg int64) ([]estate.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]estate.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePayment persists the gateway state of p. The status guard makes the
// transition a compare-and-set: a concurrent writer that moved the row first
// leaves zero rows to update.
func (s *Store) UpdatePayment(ctx context.Context, p estate.Payment, expected estate.PaymentStatus) (estate.Payment, error) {
	var paidAt sql.NullTime
	if p.PaidAt != nil {
		paidAt = sql.NullTime{Time: *p.PaidAt, Valid: true}
	}
	row := s.db.QueryRowContext(ctx, `
		update payments
		set status = $2,
		    reference = $3,
		    gateway_token = $4,
		    paid_at = $5
		where id = $1 and status = $6
		returning `+paymentColumns,
		p.ID, string(p.Status), nullString(p.Reference), nullString(p.GatewayToken), paidAt, string(expected))
	updated, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return estate.Payment{}, fmt.Errorf("%w: payment %d is no longer %s", estate.ErrInvalidState, p.ID, expected)
	}
	if err != nil {
		return estate.Payment{}, mapError(err)
	}
	return updated, nil
}
