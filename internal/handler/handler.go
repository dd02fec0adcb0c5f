package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/user/casting/internal/model"
	"github.com/user/casting/internal/repository"
	"github.com/user/casting/internal/utils"
)

// Handler HTTP 处理器
type Handler struct {
	Actors repository.Store[model.Actor]
	Movies repository.Store[model.Movie]
}

// NewHandler 创建处理器
func NewHandler(repos *repository.Repositories) *Handler {
	return &Handler{
		Actors: repos.Actor,
		Movies: repos.Movie,
	}
}

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验引擎注册自定义规则
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("binding validator is not go-playground/validator")
			return
		}
		err = v.RegisterValidation("releasedate", func(fl validator.FieldLevel) bool {
			_, parseErr := model.ParseRelease(fl.Field().String())
			return parseErr == nil
		})
	})
	return err
}

// bindInput 解析 JSON 请求体，格式或校验失败一律 422
func bindInput(c *gin.Context, in any) error {
	if err := c.ShouldBindJSON(in); err != nil {
		return utils.Unprocessable(err)
	}
	return nil
}

// bindPatch PATCH 请求体必须是非空 JSON 对象；字段全部为 null 或未知时不做修改
func bindPatch(c *gin.Context, in any) error {
	var fields map[string]json.RawMessage
	if err := c.ShouldBindBodyWith(&fields, binding.JSON); err != nil {
		return utils.Unprocessable(err)
	}
	if len(fields) == 0 {
		return utils.Unprocessable(errors.New("empty request body"))
	}
	if err := c.ShouldBindBodyWith(in, binding.JSON); err != nil {
		return utils.Unprocessable(err)
	}
	return nil
}

// writeError 记录在读取后被并发删除时映射为 404
func writeError(action string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return utils.ErrNotFound
	}
	return fmt.Errorf("%s: %w", action, err)
}

// findByID 路径参数不是正整数或记录不存在时返回 ErrNotFound
func findByID[T any](c *gin.Context, store repository.Store[T]) (*T, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return nil, utils.ErrNotFound
	}

	record, err := store.FindByID(c.Request.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("查询记录 %d 失败: %w", id, err)
	}
	if record == nil {
		return nil, utils.ErrNotFound
	}
	return record, nil
}

func requireText(field string, value *string) error {
	if value == nil || *value == "" {
		return utils.Unprocessable(fmt.Errorf("%s is required", field))
	}
	return nil
}
