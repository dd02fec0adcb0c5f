package repository

import (
	"github.com/user/casting/internal/model"
	"gorm.io/gorm"
)

// ActorRepository 演员仓库
type ActorRepository struct {
	crudRepository[model.Actor]
}

// NewActorRepository 创建演员仓库
func NewActorRepository(db *gorm.DB) *ActorRepository {
	return &ActorRepository{crudRepository[model.Actor]{db: db}}
}
