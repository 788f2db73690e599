package quote

import (
	"fmt"
	"strings"
	"testing"
)

func TestLRUCacheEviction(t *testing.T) {
	cache := NewBoundedLRUCache[string, int](3)

	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Set("c", 3)

	// touch "a" so "b" becomes the eviction victim
	if _, ok := cache.Get("a"); !ok {
		t.Fatal("a should be cached")
	}

	cache.Set("d", 4)
	if cache.Size() != 3 {
		t.Errorf("size = %d, want 3", cache.Size())
	}
	if _, ok := cache.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Error("a should have survived")
	}
}

func TestLRUCacheUpdateExisting(t *testing.T) {
	cache := NewBoundedLRUCache[string, int](2)
	cache.Set("a", 1)
	cache.Set("a", 10)

	if v, _ := cache.Get("a"); v != 10 {
		t.Errorf("got %d, want 10", v)
	}
	if cache.Size() != 1 {
		t.Errorf("size = %d, want 1", cache.Size())
	}
}

func TestLRUCacheDeleteFunc(t *testing.T) {
	cache := NewBoundedLRUCache[string, int](10)
	for i := 0; i < 5; i++ {
		cache.Set(fmt.Sprintf("1|pair-%d", i), i)
		cache.Set(fmt.Sprintf("8453|pair-%d", i), i)
	}

	cache.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, "1|")
	})

	if cache.Size() != 5 {
		t.Errorf("size = %d, want 5 after prefix delete", cache.Size())
	}
	if _, ok := cache.Get("8453|pair-0"); !ok {
		t.Error("other network's entries must survive")
	}
}

func TestLRUCacheClear(t *testing.T) {
	cache := NewBoundedLRUCache[string, int](4)
	cache.Set("a", 1)
	cache.Clear()

	if cache.Size() != 0 {
		t.Errorf("size = %d after clear", cache.Size())
	}
	// cache still usable after clear
	cache.Set("b", 2)
	if v, ok := cache.Get("b"); !ok || v != 2 {
		t.Error("cache must accept writes after clear")
	}
}
