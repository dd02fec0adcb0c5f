package repository

import (
	"github.com/user/casting/internal/model"
	"gorm.io/gorm"
)

// MovieRepository 电影仓库
type MovieRepository struct {
	crudRepository[model.Movie]
}

// NewMovieRepository 创建电影仓库
func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{crudRepository[model.Movie]{db: db}}
}
