package repository

import "gorm.io/gorm"

// paginate limits a query to one page. A non-positive size leaves the query unbounded.
func paginate(page, size int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if size <= 0 {
			return db
		}
		if page <= 0 {
			page = 1
		}
		return db.Offset((page - 1) * size).Limit(size)
	}
}

// newestFirst orders by creation time with the primary key as tie-breaker.
func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}

// countThenFind counts the rows matched by query and loads one page of them into dest.
func countThenFind(query *gorm.DB, page, size int, dest any) (int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	if err := query.Scopes(paginate(page, size), newestFirst).Find(dest).Error; err != nil {
		return 0, err
	}
	return total, nil
}
