package checkout

import (
	"context"
	"database/sql"
	"errors"

	"keebshop_backend/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tx is the transactional view the orchestrator works against. Every read
// is authoritative for the lifetime of the transaction; writes commit
// together or not at all.
type Tx interface {
	// ProductForUpdate re-reads a product's current row and locks it until
	// the transaction ends. Returns ErrProductNotFound for missing ids.
	ProductForUpdate(id uint) (*models.Product, error)

	// DecrementStock schedules a stock decrement for a locked product.
	DecrementStock(id uint, qty int) error

	// CreateOrder schedules creation of the order document.
	CreateOrder(o *models.Order) error
}

// Store runs atomic read-modify-write transactions against the backing
// database. Implementations must surface write conflicts as
// ErrTransactionConflict so the orchestrator can retry the whole body.
type Store interface {
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// GormStore is the Postgres-backed Store. Transactions run serializable
// with row locks on every product read, which makes the stock check and
// decrement race-free across concurrent checkouts.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{tx: tx})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	return translateConflict(err)
}

// translateConflict maps Postgres serialization aborts onto
// ErrTransactionConflict. 40001 = serialization_failure, 40P01 = deadlock.
func translateConflict(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return ErrTransactionConflict
		}
	}
	return err
}

type gormTx struct {
	tx *gorm.DB
}

func (t *gormTx) ProductForUpdate(id uint) (*models.Product, error) {
	var p models.Product
	err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (t *gormTx) DecrementStock(id uint, qty int) error {
	return t.tx.Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty)).Error
}

func (t *gormTx) CreateOrder(o *models.Order) error {
	return t.tx.Create(o).Error
}
