package pg

import (
	"context"

	"sigepa.cl/internal/estate"
)

const expenseColumns = `id, community_id, description, category, amount, due_on, created_at`

func scanExpense(row scanner) (estate.Expense, error) {
	var e estate.Expense
	err := row.Scan(&e.ID, &e.CommunityID, &e.Description, &e.Category, &e.Amount, &e.DueOn, &e.CreatedAt)
	return e, err
}

// CreateExpense inserts the expense and its payments in one transaction.
func (s *Store) CreateExpense(ctx context.Context, e estate.Expense, payments []estate.Payment) (estate.Expense, []estate.Payment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return estate.Expense{}, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	created, err := scanExpense(tx.QueryRowContext(ctx, `
		insert into expenses (community_id, description, category, amount, due_on)
		values ($1, $2, $3, $4, $5)
		returning `+expenseColumns,
		e.CommunityID, e.Description, e.Category, e.Amount, e.DueOn))
	if err != nil {
		return estate.Expense{}, nil, mapError(err)
	}

	out := make([]estate.Payment, 0, len(payments))
	for _, p := range payments {
		row := tx.QueryRowContext(ctx, `
			insert into payments (community_id, expense_id, parcel_id, user_id, amount, status)
			values ($1, $2, $3, $4, $5, $6)
			returning `+paymentColumns,
			p.CommunityID, created.ID, p.ParcelID, p.UserID, p.Amount, string(p.Status))
		stored, err := scanPayment(row)
		if err != nil {
			return estate.Expense{}, nil, mapError(err)
		}
		out = append(out, stored)
	}

	if err := tx.Commit(); err != nil {
		return estate.Expense{}, nil, err
	}
	return created, out, nil
}

func (s *Store) ListExpenses(ctx context.Context, communityID int64) ([]estate.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+expenseColumns+`
		from expenses
		where community_id = $1
		order by due_on desc, id desc
	`, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]estate.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
