package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
)

// PostgresBackend stores collections in a Postgres database through gorm.
type PostgresBackend struct {
	db *gorm.DB
}

func NewPostgresBackend(db *gorm.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) Insert(ctx context.Context, row models.Insertable) error {
	key := row.GetIdempotencyKey()
	if key == "" {
		return apperror.New(apperror.KindBadRequest, "insert "+row.TableName()+": missing idempotency key")
	}

	result := b.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(row)
	if result.Error != nil {
		return classifyGorm(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// The key was stored by an earlier attempt.
	if err := b.db.WithContext(ctx).Where("idempotency_key = ?", key).Take(row).Error; err != nil {
		return classifyGorm(err)
	}
	return nil
}

func (b *PostgresBackend) Update(ctx context.Context, table string, filters []Filter, values map[string]any) (int64, error) {
	if len(filters) == 0 {
		return 0, apperror.New(apperror.KindBadRequest, "update "+table+": refusing to update without filters")
	}
	tx := applyFilters(b.db.WithContext(ctx).Table(table), filters)
	result := tx.Updates(values)
	if result.Error != nil {
		return 0, classifyGorm(result.Error)
	}
	return result.RowsAffected, nil
}

func (b *PostgresBackend) Select(ctx context.Context, table string, q Query, dest any) error {
	tx := b.db.WithContext(ctx).Table(table)
	if len(q.Columns) > 0 {
		tx = tx.Select(q.Columns)
	}
	tx = applyFilters(tx, q.Filters)
	if q.OrderBy != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Descending})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err := tx.Find(dest).Error; err != nil {
		return classifyGorm(err)
	}
	return nil
}

func (b *PostgresBackend) Increment(ctx context.Context, table, id, column string) error {
	result := b.db.WithContext(ctx).Table(table).
		Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).
		UpdateColumn(column, gorm.Expr("? + 1", clause.Column{Name: column}))
	if result.Error != nil {
		return classifyGorm(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.New(apperror.KindNotFound, fmt.Sprintf("%s %s not found", table, id))
	}
	return nil
}

func applyFilters(tx *gorm.DB, filters []Filter) *gorm.DB {
	for _, f := range filters {
		col := clause.Column{Name: f.Column}
		switch f.Op {
		case OpGte:
			tx = tx.Where(clause.Gte{Column: col, Value: f.Value})
		case OpLte:
			tx = tx.Where(clause.Lte{Column: col, Value: f.Value})
		case OpLt:
			tx = tx.Where(clause.Lt{Column: col, Value: f.Value})
		default:
			tx = tx.Where(clause.Eq{Column: col, Value: f.Value})
		}
	}
	return tx
}

func classifyGorm(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		return apperror.FromPostgres(pgErr.Code, pgErr.Message, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.Wrap(apperror.KindNotFound, err, "record not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperror.Wrap(apperror.KindTransient, err, "database")
	}
}
