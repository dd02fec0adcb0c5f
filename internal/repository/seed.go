package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/user/casting/internal/model"
)

// SeedMovies 初始电影数据
func SeedMovies() []model.Movie {
	return []model.Movie{
		{Title: "Transformers", Release: date(2007, time.July, 3)},
		{Title: "Iron Man", Release: date(2008, time.May, 2)},
	}
}

// SeedActors 初始演员数据
func SeedActors() []model.Actor {
	return []model.Actor{
		{Name: "Robert Downey Jr.", Age: intPtr(54), Gender: strPtr("Male")},
		{Name: "Shia LaBeouf", Age: intPtr(33), Gender: strPtr("Male")},
	}
}

// Reset 删除并重建所有表，再写入初始数据
// 注意：会清空全部记录
func Reset(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx)
	if err := tx.Exec(`DROP TABLE IF EXISTS "actors", "movies"`).Error; err != nil {
		return fmt.Errorf("删除表失败: %w", err)
	}
	// 表已删除，直接建表无需比对结构
	for _, table := range []interface{}{&model.Actor{}, &model.Movie{}} {
		if err := tx.Migrator().CreateTable(table); err != nil {
			return fmt.Errorf("建表失败: %w", err)
		}
	}

	repos := NewRepositories(db)
	for _, m := range SeedMovies() {
		if err := repos.Movie.Insert(ctx, &m); err != nil {
			return fmt.Errorf("写入电影 %s 失败: %w", m.Title, err)
		}
	}
	for _, a := range SeedActors() {
		if err := repos.Actor.Insert(ctx, &a); err != nil {
			return fmt.Errorf("写入演员 %s 失败: %w", a.Name, err)
		}
	}
	return nil
}

func date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
