package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/user/casting/internal/model"
)

// 权限字符串
const (
	PermGetActors   = "get:actors"
	PermAddActor    = "add:actor"
	PermModifyActor = "modify:actor"
	PermDeleteActor = "delete:actor"
	PermGetMovies   = "get:movies"
	PermAddMovie    = "add:movie"
	PermModifyMovie = "modify:movie"
	PermDeleteMovie = "delete:movie"
)

// 角色
const (
	RoleAssistant = "assistant"
	RoleDirector  = "director"
	RoleProducer  = "producer"
)

var (
	assistantPermissions = []string{PermGetActors, PermGetMovies}
	directorPermissions  = append(append([]string{}, assistantPermissions...),
		PermAddActor, PermDeleteActor, PermModifyActor, PermModifyMovie)
	producerPermissions = append(append([]string{}, directorPermissions...),
		PermAddMovie, PermDeleteMovie)
)

// RolePermissions 返回角色拥有的权限（副本）
func RolePermissions(role string) ([]string, bool) {
	var perms []string
	switch role {
	case RoleAssistant:
		perms = assistantPermissions
	case RoleDirector:
		perms = directorPermissions
	case RoleProducer:
		perms = producerPermissions
	default:
		return nil, false
	}
	return append([]string{}, perms...), true
}

// Roles 全部角色名，按字母排序
func Roles() []string {
	roles := []string{RoleAssistant, RoleDirector, RoleProducer}
	sort.Strings(roles)
	return roles
}

// TokenRequest 签发令牌参数
type TokenRequest struct {
	Subject     string
	Permissions []string
	Audience    string
	Issuer      string
	Expiry      time.Duration
}

// GenerateToken 使用共享密钥签发 HS256 令牌
func GenerateToken(secret string, req TokenRequest) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("签发令牌需要共享密钥")
	}
	now := time.Now()
	claims := &model.Claims{
		Permissions: req.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Subject,
			Issuer:    req.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(req.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if req.Audience != "" {
		claims.Audience = jwt.ClaimStrings{req.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// GenerateRoleToken 按角色签发令牌
func GenerateRoleToken(secret, role, audience, issuer string, expiry time.Duration) (string, error) {
	perms, ok := RolePermissions(role)
	if !ok {
		return "", fmt.Errorf("未知角色 %q", role)
	}
	return GenerateToken(secret, TokenRequest{
		Subject:     role,
		Permissions: perms,
		Audience:    audience,
		Issuer:      issuer,
		Expiry:      expiry,
	})
}
