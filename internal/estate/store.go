package estate

import "context"

// Store persists the community domain. Implementations return ErrNotFound for
// missing rows and ErrConflict for uniqueness violations. Every delete and
// list is scoped by community id.
type Store interface {
	Community(ctx context.Context, id int64) (Community, error)

	CreateUser(ctx context.Context, u User) (User, error)
	User(ctx context.Context, id int64) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, communityID int64) ([]User, error)
	UpdateUser(ctx context.Context, u User) (User, error)
	DeleteUser(ctx context.Context, communityID, id int64) error

	CreateParcel(ctx context.Context, p Parcel) (Parcel, error)
	Parcel(ctx context.Context, id int64) (Parcel, error)
	ListParcels(ctx context.Context, communityID int64) ([]Parcel, error)
	ListParcelsByUser(ctx context.Context, userID int64) ([]Parcel, error)
	DeleteParcel(ctx context.Context, communityID, id int64) error

	CreateContract(ctx context.Context, c Contract) (Contract, error)
	Contract(ctx context.Context, id int64) (Contract, error)
	ListContracts(ctx context.Context, communityID int64) ([]Contract, error)
	DeleteContract(ctx context.Context, communityID, id int64) error

	// CreateExpense stores the expense and its payments atomically. The
	// payments' ExpenseID is filled in by the store.
	CreateExpense(ctx context.Context, e Expense, payments []Payment) (Expense, []Payment, error)
	ListExpenses(ctx context.Context, communityID int64) ([]Expense, error)

	Payment(ctx context.Context, id int64) (Payment, error)
	PaymentByToken(ctx context.Context, token string) (Payment, error)
	ListPayments(ctx context.Context, communityID int64) ([]Payment, error)
	ListPaymentsByUser(ctx context.Context, userID int64) ([]Payment, error)
	// UpdatePayment writes the gateway state of p only while the stored
	// status still equals expected, and returns ErrInvalidState otherwise.
	UpdatePayment(ctx context.Context, p Payment, expected PaymentStatus) (Payment, error)

	CreateNotification(ctx context.Context, n Notification) (Notification, error)
	Notification(ctx context.Context, id int64) (Notification, error)
	ListNotifications(ctx context.Context, communityID int64, limit int) ([]Notification, error)
	DeleteNotification(ctx context.Context, communityID, id int64) error

	Summary(ctx context.Context, communityID int64) (Summary, error)
}
