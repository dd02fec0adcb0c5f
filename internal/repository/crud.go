package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound 更新或删除时记录已不存在
var ErrNotFound = errors.New("record no longer exists")

// Store 单表的增删改查
type Store[T any] interface {
	Insert(ctx context.Context, record *T) error
	ListAll(ctx context.Context) ([]T, error)
	FindByID(ctx context.Context, id int) (*T, error)
	Update(ctx context.Context, record *T) error
	Delete(ctx context.Context, record *T) error
}

type crudRepository[T any] struct {
	db *gorm.DB
}

// Insert 插入并回填自增 ID
func (r *crudRepository[T]) Insert(ctx context.Context, record *T) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ListAll 按 ID 升序返回全部记录，无记录时返回空切片
func (r *crudRepository[T]) ListAll(ctx context.Context) ([]T, error) {
	records := make([]T, 0)
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// FindByID 根据 ID 查找（未找到返回 nil, nil）
func (r *crudRepository[T]) FindByID(ctx context.Context, id int) (*T, error) {
	var record T
	err := r.db.WithContext(ctx).First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Update 按主键更新全部字段，记录已被删除时返回 ErrNotFound（不会重新插入）
func (r *crudRepository[T]) Update(ctx context.Context, record *T) error {
	res := r.db.WithContext(ctx).Model(record).Select("*").Updates(record)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 物理删除，记录已不存在时返回 ErrNotFound
func (r *crudRepository[T]) Delete(ctx context.Context, record *T) error {
	res := r.db.WithContext(ctx).Delete(record)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
