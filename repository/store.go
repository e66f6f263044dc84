package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store hands out repositories bound to one connection or transaction.
type Store interface {
	Accounts() AccountRepository
	Roles() RoleRepository
	Otps() OtpRepository
	Products() ProductRepository
	Images() ImageRepository
	Carts() CartRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Campaigns() CampaignRepository

	// WithTx runs fn inside a database transaction. Repositories obtained
	// from the Store passed to fn share that transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Accounts() AccountRepository   { return NewAccountRepository(s.db) }
func (s *gormStore) Roles() RoleRepository         { return NewRoleRepository(s.db) }
func (s *gormStore) Otps() OtpRepository           { return NewOtpRepository(s.db) }
func (s *gormStore) Products() ProductRepository   { return NewProductRepository(s.db) }
func (s *gormStore) Images() ImageRepository       { return NewImageRepository(s.db) }
func (s *gormStore) Carts() CartRepository         { return NewCartRepository(s.db) }
func (s *gormStore) Orders() OrderRepository       { return NewOrderRepository(s.db) }
func (s *gormStore) Payments() PaymentRepository   { return NewPaymentRepository(s.db) }
func (s *gormStore) Campaigns() CampaignRepository { return NewCampaignRepository(s.db) }

func (s *gormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// forUpdate locks selected rows until the surrounding transaction ends.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
