package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/user/casting/internal/model"
	"github.com/user/casting/internal/utils"
)

// ListActors GET /actors
func (h *Handler) ListActors(c *gin.Context) {
	actors, err := h.Actors.ListAll(c.Request.Context())
	if err != nil {
		utils.Fail(c, fmt.Errorf("查询演员列表失败: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "actors": actors, "total": len(actors)})
}

// CreateActor POST /actors
func (h *Handler) CreateActor(c *gin.Context) {
	var in model.ActorInput
	if err := bindInput(c, &in); err != nil {
		utils.Fail(c, err)
		return
	}
	if err := requireText("name", in.Name); err != nil {
		utils.Fail(c, err)
		return
	}

	var actor model.Actor
	in.ApplyTo(&actor)
	if err := h.Actors.Insert(c.Request.Context(), &actor); err != nil {
		utils.Fail(c, fmt.Errorf("新增演员失败: %w", err))
		return
	}

	actors, err := h.Actors.ListAll(c.Request.Context())
	if err != nil {
		utils.Fail(c, fmt.Errorf("查询演员列表失败: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "new_actor_id": actor.ID, "actors": actors})
}

// UpdateActor PATCH /actors/:id，只修改提供了的字段
func (h *Handler) UpdateActor(c *gin.Context) {
	actor, err := findByID(c, h.Actors)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	var in model.ActorInput
	if err := bindPatch(c, &in); err != nil {
		utils.Fail(c, err)
		return
	}
	if in.Name != nil {
		if err := requireText("name", in.Name); err != nil {
			utils.Fail(c, err)
			return
		}
	}

	in.ApplyTo(actor)
	if err := h.Actors.Update(c.Request.Context(), actor); err != nil {
		utils.Fail(c, writeError(fmt.Sprintf("更新演员 %d 失败", actor.ID), err))
		return
	}

	actors, err := h.Actors.ListAll(c.Request.Context())
	if err != nil {
		utils.Fail(c, fmt.Errorf("查询演员列表失败: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated_id": actor.ID, "actors": actors})
}

// DeleteActor DELETE /actors/:id
func (h *Handler) DeleteActor(c *gin.Context) {
	actor, err := findByID(c, h.Actors)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	if err := h.Actors.Delete(c.Request.Context(), actor); err != nil {
		utils.Fail(c, writeError(fmt.Sprintf("删除演员 %d 失败", actor.ID), err))
		return
	}

	actors, err := h.Actors.ListAll(c.Request.Context())
	if err != nil {
		utils.Fail(c, fmt.Errorf("查询演员列表失败: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted_id": actor.ID, "actors": actors})
}
