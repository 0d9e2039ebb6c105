// Package option provides composable query options for the generic store.
package option

import "gorm.io/gorm"

// QueryOption customizes a gorm query before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type optionFunc func(db *gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// WithWhere adds a raw condition with arguments.
func WithWhere(query any, args ...any) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// WithOrgID constrains the query to one org. Every list and lookup on
// an org-scoped table carries this in addition to the session policy.
func WithOrgID(orgID any) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where("org_id = ?", orgID)
	})
}

// WithOrder adds an ordering clause.
func WithOrder(order string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(order)
	})
}

// WithLimit caps the result size.
func WithLimit(limit int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// WithOffset skips rows for offset pagination.
func WithOffset(offset int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if offset <= 0 {
			return db
		}
		return db.Offset(offset)
	})
}

// WithPreload eager-loads an association.
func WithPreload(association string, args ...any) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Preload(association, args...)
	})
}
