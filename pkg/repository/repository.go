package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/opencrmhq/opencrm/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic store over one gorm model. Implementations
// resolve the tenant-bound handle from the request context, so queries
// issued inside an org scope run on the connection carrying the org
// setting.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID snowflake.ID, resource any) error
	Delete(ctx context.Context, resourceID snowflake.ID) error
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
	BatchCreate(ctx context.Context, resources []*T) error
}
