// Package orm holds small query helpers shared by the repositories:
// offset pagination and read-through caching of list queries.
package orm

import (
	"time"

	"github.com/shashiranjanraj/ferremas/pkg/cache"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination is the metadata returned next to a page of items.
type Pagination struct {
	Page     int   `json:"page"`
	Limit    int   `json:"limit"`
	Total    int64 `json:"total"`
	LastPage int   `json:"last_page"`
}

// Page normalises a (page, limit) pair.
func Page(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Paginate counts q, then loads one page into dest with preloads applied.
// q should already carry Model, filters and ordering; preloads stay off
// the count query.
func Paginate(q *gorm.DB, page, limit int, dest interface{}, preloads ...string) (Pagination, error) {
	page, limit = Page(page, limit)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Pagination{}, err
	}

	find := q.Session(&gorm.Session{})
	for _, p := range preloads {
		find = find.Preload(p)
	}
	if err := find.Offset((page - 1) * limit).Limit(limit).Find(dest).Error; err != nil {
		return Pagination{}, err
	}

	last := int((total + int64(limit) - 1) / int64(limit))
	if last < 1 {
		last = 1
	}

	return Pagination{Page: page, Limit: limit, Total: total, LastPage: last}, nil
}

// CachedFind serves dest from cache when possible, otherwise runs q and
// stores the result for ttl.
func CachedFind(q *gorm.DB, key string, ttl time.Duration, dest interface{}) error {
	ctx := q.Statement.Context
	if cache.Get(ctx, key, dest) {
		return nil
	}

	if err := q.Find(dest).Error; err != nil {
		return err
	}

	_ = cache.Set(ctx, key, dest, ttl)
	return nil
}
