package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/user/casting/internal/model"
	"github.com/user/casting/internal/utils"
)

const (
	jwksCacheKey = "jwks"
	// 未知 kid 触发强制刷新的最小间隔
	minForcedRefresh = 30 * time.Second
	fetchTimeout     = 10 * time.Second
)

var (
	errMissingKID = errors.New("token header has no kid")
	errUnknownKey = errors.New("no signing key matches kid")
	errKeyFetch   = errors.New("signing keys unavailable")
)

// KeySetFetcher 抽象 JWKS 拉取，测试时可替换
type KeySetFetcher interface {
	FetchKeys(ctx context.Context, jwksURL string) (jwk.Set, error)
}

// HTTPKeySetFetcher 通过 HTTP 拉取 JWKS
type HTTPKeySetFetcher struct{}

// FetchKeys 拉取并解析 JWKS
func (HTTPKeySetFetcher) FetchKeys(ctx context.Context, jwksURL string) (jwk.Set, error) {
	return jwk.Fetch(ctx, jwksURL)
}

// VerifierConfig 令牌验证参数
type VerifierConfig struct {
	Issuer     string
	Audience   string
	Algorithms []string
	// HS256Secret 非空时使用共享密钥验证，忽略 JWKS
	HS256Secret    string
	JWKSURL        string
	KeyCacheTTL    time.Duration
	TokenCacheSize int
	Leeway         time.Duration
}

// TokenVerifier 验证 Bearer 令牌并返回声明集
type TokenVerifier struct {
	cfg     VerifierConfig
	parser  *jwt.Parser
	fetcher KeySetFetcher
	keys    *cache.Cache
	sf      singleflight.Group

	mu        sync.RWMutex
	lastKnown jwk.Set
	lastFetch time.Time

	verified *utils.ExpiringCache[*model.Claims]
	logger   *slog.Logger
	now      func() time.Time
}

// NewTokenVerifier 创建令牌验证器，fetcher 为 nil 时走 HTTP
func NewTokenVerifier(cfg VerifierConfig, fetcher KeySetFetcher, logger *slog.Logger) *TokenVerifier {
	if fetcher == nil {
		fetcher = HTTPKeySetFetcher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.KeyCacheTTL <= 0 {
		cfg.KeyCacheTTL = 10 * time.Minute
	}

	algorithms := cfg.Algorithms
	if cfg.HS256Secret != "" {
		algorithms = []string{jwt.SigningMethodHS256.Alg()}
	}
	if len(algorithms) == 0 {
		algorithms = []string{jwt.SigningMethodRS256.Alg()}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(algorithms),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &TokenVerifier{
		cfg:      cfg,
		parser:   jwt.NewParser(opts...),
		fetcher:  fetcher,
		keys:     cache.New(cfg.KeyCacheTTL, 2*cfg.KeyCacheTTL),
		verified: utils.NewExpiringCache[*model.Claims](cfg.TokenCacheSize),
		logger:   logger,
		now:      time.Now,
	}
}

// Verify 校验签名、iss、aud 与过期时间
func (v *TokenVerifier) Verify(ctx context.Context, rawToken string) (*model.Claims, error) {
	if claims, ok := v.verified.Get(rawToken); ok {
		return claims, nil
	}

	claims := &model.Claims{}
	_, err := v.parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		return v.signingKey(ctx, token)
	})
	if err != nil {
		return nil, classify(err)
	}

	v.remember(rawToken, claims)
	return claims, nil
}

// Refresh 强制重新拉取 JWKS，供后台刷新任务使用
func (v *TokenVerifier) Refresh(ctx context.Context) error {
	if v.UsesSharedSecret() {
		return nil
	}
	_, err := v.fetch(ctx)
	return err
}

// UsesSharedSecret 是否为 HS256 模式
func (v *TokenVerifier) UsesSharedSecret() bool {
	return v.cfg.HS256Secret != ""
}

// KeyCacheTTL 公钥缓存有效期
func (v *TokenVerifier) KeyCacheTTL() time.Duration {
	return v.cfg.KeyCacheTTL
}

func (v *TokenVerifier) remember(rawToken string, claims *model.Claims) {
	if claims.ExpiresAt == nil {
		return
	}
	expiresAt := claims.ExpiresAt.Time
	// 不超过公钥缓存周期，密钥吊销后旧令牌不会长期命中
	if limit := v.now().Add(v.cfg.KeyCacheTTL); limit.Before(expiresAt) {
		expiresAt = limit
	}
	v.verified.Set(rawToken, claims, expiresAt)
}

func (v *TokenVerifier) signingKey(ctx context.Context, token *jwt.Token) (interface{}, error) {
	if v.UsesSharedSecret() {
		return []byte(v.cfg.HS256Secret), nil
	}

	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, errMissingKID
	}

	set, err := v.keySet(ctx)
	if err != nil {
		return nil, err
	}
	key, ok := set.LookupKeyID(kid)
	if !ok {
		// 密钥可能已轮换，强制刷新一次
		if set, err = v.forceRefresh(ctx); err != nil {
			return nil, err
		}
		if key, ok = set.LookupKeyID(kid); !ok {
			return nil, errUnknownKey
		}
	}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("解析公钥失败: %w", err)
	}
	return raw, nil
}

func (v *TokenVerifier) keySet(ctx context.Context) (jwk.Set, error) {
	if cached, ok := v.keys.Get(jwksCacheKey); ok {
		return cached.(jwk.Set), nil
	}
	return v.fetch(ctx)
}

func (v *TokenVerifier) forceRefresh(ctx context.Context) (jwk.Set, error) {
	v.mu.RLock()
	recent := v.lastKnown != nil && v.now().Sub(v.lastFetch) < minForcedRefresh
	set := v.lastKnown
	v.mu.RUnlock()
	if recent {
		return set, nil
	}
	return v.fetch(ctx)
}

// fetch 拉取 JWKS；并发请求合并为一次，失败时回退到上一次成功的结果
func (v *TokenVerifier) fetch(ctx context.Context) (jwk.Set, error) {
	val, err, _ := v.sf.Do(jwksCacheKey, func() (interface{}, error) {
		// 多个请求共享这次拉取，不随首个请求取消
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		set, err := v.fetcher.FetchKeys(fetchCtx, v.cfg.JWKSURL)
		if err != nil {
			return nil, err
		}
		v.keys.Set(jwksCacheKey, set, cache.DefaultExpiration)
		v.mu.Lock()
		previous := v.lastKnown
		v.lastKnown = set
		v.lastFetch = v.now()
		v.mu.Unlock()

		// 有公钥被移除时，已缓存的令牌必须重新验证
		if previous != nil && keysRemoved(previous, set) {
			v.verified.Clear()
			v.logger.Info("JWKS 公钥已轮换，清空令牌缓存", slog.String("url", v.cfg.JWKSURL))
		}
		return set, nil
	})
	if err == nil {
		return val.(jwk.Set), nil
	}

	v.mu.RLock()
	stale := v.lastKnown
	v.mu.RUnlock()
	if stale != nil {
		// 短暂回填，避免每个请求都去重试拉取
		v.keys.Set(jwksCacheKey, stale, minForcedRefresh)
		v.logger.Warn("拉取 JWKS 失败，使用上一次的公钥", slog.String("url", v.cfg.JWKSURL), slog.Any("error", err))
		return stale, nil
	}
	return nil, fmt.Errorf("%w: %v", errKeyFetch, err)
}

// keysRemoved old 中是否有 kid 不在 current 里
func keysRemoved(old, current jwk.Set) bool {
	for i := 0; i < old.Len(); i++ {
		key, ok := old.Key(i)
		if !ok {
			continue
		}
		if _, found := current.LookupKeyID(key.KeyID()); !found {
			return true
		}
	}
	return false
}

// classify 将解析错误映射为 AuthError
func classify(err error) *utils.AuthError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return utils.NewAuthError(utils.AuthCodeTokenExpired, "Token expired.", http.StatusUnauthorized)
	case errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return utils.NewAuthError(utils.AuthCodeInvalidClaims, "Incorrect claims. Please, check the audience and issuer.", http.StatusUnauthorized)
	case errors.Is(err, errMissingKID):
		return utils.NewAuthError(utils.AuthCodeInvalidHeader, "Authorization malformed.", http.StatusUnauthorized)
	case errors.Is(err, errUnknownKey):
		return utils.NewAuthError(utils.AuthCodeInvalidHeader, "Unable to find the appropriate key.", http.StatusUnauthorized)
	case errors.Is(err, errKeyFetch):
		return utils.NewAuthError(utils.AuthCodeInvalidHeader, "Unable to fetch signing keys.", http.StatusUnauthorized)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return utils.NewAuthError(utils.AuthCodeInvalidHeader, "Unable to parse authentication token.", http.StatusUnauthorized)
	default:
		return utils.NewAuthError(utils.AuthCodeInvalidToken, "Token is invalid.", http.StatusUnauthorized)
	}
}
