package pricing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

// Cache 解析器缓存
//
// 快照和蓝图生成只在上传时发生一次，报价请求复用同一个解析器；
// 键由上传时间和映射哈希共同构成，改映射或换工作簿都会让旧键失效。
// 保存映射/覆盖的写路径必须显式 Invalidate。
type Cache struct {
	mu       sync.RWMutex
	key      string
	resolver Resolver
}

func NewCache() *Cache {
	return &Cache{}
}

// CacheKey 上传时间 + 映射内容哈希
func CacheKey(uploadedAt time.Time, mapping model.WorkbookMapping) string {
	raw, err := json.Marshal(mapping)
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", mapping))
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%d:%s", uploadedAt.UnixNano(), hex.EncodeToString(sum[:8]))
}

// Get 键匹配才命中
func (c *Cache) Get(key string) (Resolver, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.resolver == nil || c.key != key {
		return nil, false
	}
	return c.resolver, true
}

func (c *Cache) Put(key string, r Resolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.resolver = r
}

// Invalidate 设置或工作簿变更后清空
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = ""
	c.resolver = nil
}
