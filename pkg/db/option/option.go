package option

import "gorm.io/gorm"

// QueryOption narrows or orders a query built by a repository.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryFunc func(db *gorm.DB) *gorm.DB

func (f queryFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

func WithOrder(order string) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB { return db.Order(order) })
}

func WithLimit(limit int) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

func WithWhere(query string, args ...any) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB { return db.Where(query, args...) })
}
