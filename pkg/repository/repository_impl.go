package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/opencrmhq/opencrm/internal/orgcontext"
	"github.com/opencrmhq/opencrm/pkg/db/option"
	"gorm.io/gorm"
)

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (r *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var result []*T
	stmt := r.buildQuery(ctx, query, opts...)
	err := stmt.Find(&result).Error
	return result, err
}

func (r *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	var result T
	stmt := r.buildQuery(ctx, query, opts...)
	err := stmt.First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) Create(ctx context.Context, resource *T) error {
	return r.conn(ctx).Create(resource).Error
}

func (r *store[T]) Update(ctx context.Context, resourceID snowflake.ID, resource any) error {
	return r.conn(ctx).Model(new(T)).Where("id = ?", resourceID).Updates(resource).Error
}

func (r *store[T]) Delete(ctx context.Context, resourceID snowflake.ID) error {
	var dummy T
	return r.conn(ctx).Where("id = ?", resourceID).Delete(&dummy).Error
}

func (r *store[T]) Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	var count int64
	err := r.buildQuery(ctx, query, opts...).Model(query).Count(&count).Error
	return count, err
}

func (r *store[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if len(resources) == 0 {
		return nil
	}
	return r.conn(ctx).Create(resources).Error
}

// conn prefers the tenant-bound handle placed on the context by the org
// middleware; outside a request scope it falls back to the shared pool.
func (r *store[T]) conn(ctx context.Context) *gorm.DB {
	return orgcontext.DBFromContext(ctx, r.db).WithContext(ctx)
}

func (r *store[T]) buildQuery(ctx context.Context, filter *T, opts ...option.QueryOption) *gorm.DB {
	db := r.conn(ctx).Where(filter)
	for _, opt := range opts {
		db = opt.Apply(db)
	}
	return db
}
