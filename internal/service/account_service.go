package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/gazetteer"
	"github.com/akirachix/mlimizone-backend/internal/messaging"
	"github.com/akirachix/mlimizone-backend/internal/notify"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

// AccountService registers subscribers and resolves them by phone number.
type AccountService struct {
	accounts  repository.AccountRepository
	orders    repository.OrderRepository
	districts *gazetteer.Gazetteer
	notifier  notify.Notifier
	publisher messaging.Publisher
}

func NewAccountService(
	accounts repository.AccountRepository,
	orders repository.OrderRepository,
	districts *gazetteer.Gazetteer,
	notifier notify.Notifier,
	publisher messaging.Publisher,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		orders:    orders,
		districts: districts,
		notifier:  notifier,
		publisher: publisher,
	}
}

// FindByPhone returns repository.ErrNotFound for unregistered numbers.
func (s *AccountService) FindByPhone(ctx context.Context, phone string) (*entity.Account, error) {
	return s.accounts.FindAccountByPhone(ctx, phone)
}

// Registration is the data collected by the registration menus.
type Registration struct {
	Phone    string
	Name     string
	Role     entity.Role
	District string
}

// Register creates the account, gives wholesalers a cart and sends the welcome SMS.
// An unknown district yields ErrUnknownDistrict.
func (s *AccountService) Register(ctx context.Context, reg Registration) (*entity.Account, error) {
	district := gazetteer.Canonical(reg.District)
	if _, ok := s.districts.Region(district); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDistrict, reg.District)
	}

	a := &entity.Account{
		Name:     reg.Name,
		Role:     reg.Role,
		Location: district,
		Phone:    reg.Phone,
	}
	if err := s.accounts.CreateAccount(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	slog.Info("Service: Registered account", "account_id", a.ID, "role", a.Role, "district", a.Location)

	if a.Role == entity.RoleWholesaler {
		if _, err := s.orders.GetOrCreateCart(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("failed to create cart: %w", err)
		}
	}

	s.notifier.Send(ctx, a.Phone, fmt.Sprintf("Welcome to MlimiZone, %s! You are registered as a %s.", a.Name, a.Role))

	messaging.Publish(ctx, s.publisher, strconv.FormatInt(a.ID, 10), entity.AccountRegistered{
		AccountID:    a.ID,
		Phone:        a.Phone,
		Role:         a.Role,
		Location:     a.Location,
		RegisteredAt: time.Now(),
	})
	return a, nil
}
