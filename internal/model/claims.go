package model

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Claims 已验证令牌的声明集
type Claims struct {
	// Permissions 为 nil 表示令牌中没有 permissions 声明
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// HasPermissionsClaim 令牌是否携带 permissions 声明
func (c *Claims) HasPermissionsClaim() bool {
	return c != nil && c.Permissions != nil
}

// HasPermission 是否拥有指定权限
func (c *Claims) HasPermission(permission string) bool {
	return c != nil && slices.Contains(c.Permissions, permission)
}
