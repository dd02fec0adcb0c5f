package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/user/casting/internal/model"
	"github.com/user/casting/internal/utils"
)

// ListMovies GET /movies
func (h *Handler) ListMovies(c *gin.Context) {
	movies, err := h.Movies.ListAll(c.Request.Context())
	if err != nil {
		utils.Fail(c, fmt.Errorf("查询电影列表失败: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "movies": movies, "total": len(movies)})
}

// CreateMovie POST /movies
func (h *Handler) CreateMovie(c *gin.Context) {
	var in model.MovieInput
	if err := bindInput(c, &in); err != nil {
		utils.Fail(c, err)
		return
	}
	if err := requireText("title", in.Title); err != nil {
		utils.Fail(c, err)
		return
	}

	var movie model.Movie
	if err := in.ApplyTo(&movie); err != nil {
		utils.Fail(c, utils.Unprocessable(err))
		return
	}
	if err := h.Movies.Insert(c.Request.Context(), &movie); err != nil {
		utils.Fail(c, fmt.Errorf("新增电影失败: %w", err))
		return
	}

	movies, err := h.Movies.ListAll(c.Request.Context())
	if err != nil {
		utils.Fail(c, fmt.Errorf("查询电影列表失败: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "new_movie_id": movie.ID, "movies": movies})
}

// UpdateMovie PATCH /movies/:id
func (h *Handler) UpdateMovie(c *gin.Context) {
	movie, err := findByID(c, h.Movies)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	var in model.MovieInput
	if err := bindPatch(c, &in); err != nil {
		utils.Fail(c, err)
		return
	}
	if in.Title != nil {
		if err := requireText("title", in.Title); err != nil {
			utils.Fail(c, err)
			return
		}
	}

	// 先在副本上修改，解析失败时不污染已加载的记录
	updated := *movie
	if err := in.ApplyTo(&updated); err != nil {
		utils.Fail(c, utils.Unprocessable(err))
		return
	}
	if err := h.Movies.Update(c.Request.Context(), &updated); err != nil {
		utils.Fail(c, writeError(fmt.Sprintf("更新电影 %d 失败", movie.ID), err))
		return
	}

	movies, err := h.Movies.ListAll(c.Request.Context())
	if err != nil {
		utils.Fail(c, fmt.Errorf("查询电影列表失败: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated_id": movie.ID, "movies": movies})
}

// DeleteMovie DELETE /movies/:id
func (h *Handler) DeleteMovie(c *gin.Context) {
	movie, err := findByID(c, h.Movies)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	if err := h.Movies.Delete(c.Request.Context(), movie); err != nil {
		utils.Fail(c, writeError(fmt.Sprintf("删除电影 %d 失败", movie.ID), err))
		return
	}

	movies, err := h.Movies.ListAll(c.Request.Context())
	if err != nil {
		utils.Fail(c, fmt.Errorf("查询电影列表失败: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted_id": movie.ID, "movies": movies})
}
