package vault

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultStoreSize 存储默认容量（条）
const defaultStoreSize = 4096

// Store 服务端键值存储
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte)
	Delete(key string) bool
	Len() int
}

// MemoryStore 带容量上限的内存存储，超出时淘汰最久未使用的键
type MemoryStore struct {
	cache *lru.Cache[string, []byte]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建容量为 size 的存储；size <= 0 使用默认容量
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = defaultStoreSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		// size 已保证为正
		panic(err)
	}
	return &MemoryStore{cache: cache}
}

// Get 读取
func (s *MemoryStore) Get(key string) ([]byte, bool) { return s.cache.Get(key) }

// Put 写入
func (s *MemoryStore) Put(key string, value []byte) { s.cache.Add(key, value) }

// Delete 删除，返回键是否存在
func (s *MemoryStore) Delete(key string) bool { return s.cache.Remove(key) }

// Len 返回条目数
func (s *MemoryStore) Len() int { return s.cache.Len() }
