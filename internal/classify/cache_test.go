package classify

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/matsen/citethreads/internal/paper"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	key := paper.EdgeKey{Source: "a", Target: "b"}
	if _, ok := c.Get(context.Background(), key); ok {
		t.Fatal("empty cache reported a hit")
	}
	c.Set(context.Background(), key, paper.Annotation{Intent: paper.IntentOppose})
	got, ok := c.Get(context.Background(), key)
	if !ok || got.Intent != paper.IntentOppose {
		t.Errorf("Get() = %+v, %v", got, ok)
	}
	if _, ok := c.Get(context.Background(), paper.EdgeKey{Source: "b", Target: "a"}); ok {
		t.Error("reversed pair should miss")
	}
}

func TestRedisKey(t *testing.T) {
	got := redisKey(paper.EdgeKey{Source: "S2:a", Target: "DOI:10.1/b"})
	if got != "citethreads:intent:S2:a|DOI:10.1/b" {
		t.Errorf("redisKey() = %q", got)
	}
}

func TestRedisCache_UnreachableIsMiss(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()
	c := newRedisCache(rdb, time.Hour, nil)

	key := paper.EdgeKey{Source: "a", Target: "b"}
	c.Set(context.Background(), key, paper.Annotation{Intent: paper.IntentSupport})
	if _, ok := c.Get(context.Background(), key); ok {
		t.Error("unreachable Redis should behave as a miss")
	}
}

func TestNewRedisCache_RequiresAddr(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "", "", 0, time.Hour, nil); err == nil {
		t.Error("NewRedisCache() should require an address")
	}
}
