package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem 包装实际的数据，增加过期时间
type CacheItem[T any] struct {
	Value     T
	ExpiredAt time.Time
}

// ExpiringCache 带单条过期时间的 LRU 缓存
type ExpiringCache[T any] struct {
	storage *lru.Cache[string, CacheItem[T]]
	now     func() time.Time
}

// NewExpiringCache 初始化，size 是最大缓存条数，size <= 0 时返回 nil（即禁用缓存）
func NewExpiringCache[T any](size int) *ExpiringCache[T] {
	if size <= 0 {
		return nil
	}
	// lru.New 是线程安全的
	c, _ := lru.New[string, CacheItem[T]](size)
	return &ExpiringCache[T]{
		storage: c,
		now:     time.Now,
	}
}

// Set 写入，expiredAt 之后视为不存在
func (c *ExpiringCache[T]) Set(key string, value T, expiredAt time.Time) {
	if c == nil || !expiredAt.After(c.now()) {
		return
	}
	c.storage.Add(key, CacheItem[T]{
		Value:     value,
		ExpiredAt: expiredAt,
	})
}

// Get 读取（带过期检查）
func (c *ExpiringCache[T]) Get(key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	item, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}

	if !c.now().Before(item.ExpiredAt) {
		c.storage.Remove(key)
		return zero, false
	}

	return item.Value, true
}

// Clear 清空
func (c *ExpiringCache[T]) Clear() {
	if c == nil {
		return
	}
	c.storage.Purge()
}

// Len 当前条数（含尚未被访问清理的过期条目）
func (c *ExpiringCache[T]) Len() int {
	if c == nil {
		return 0
	}
	return c.storage.Len()
}
