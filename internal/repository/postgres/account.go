package postgres

import (
	"context"
	"database/sql"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

type accountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new AccountRepository backed by Postgres.
func NewAccountRepository(db *sql.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) FindAccountByPhone(ctx context.Context, phone string) (*entity.Account, error) {
	var a entity.Account
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, role, location, phone_number, created_at FROM accounts WHERE phone_number = $1",
		phone,
	).Scan(&a.ID, &a.Name, &a.Role, &a.Location, &a.Phone, &a.CreatedAt)
	if err != nil {
		return nil, wrap("find account", err)
	}
	return &a, nil
}

func (r *accountRepository) CreateAccount(ctx context.Context, a *entity.Account) error {
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO accounts (name, role, location, phone_number) VALUES ($1, $2, $3, $4) RETURNING id, created_at",
		a.Name, a.Role, a.Location, a.Phone,
	).Scan(&a.ID, &a.CreatedAt)
	return wrap("insert account", err)
}
