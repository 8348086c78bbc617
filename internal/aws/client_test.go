package aws

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
)

func TestNewRetryer(t *testing.T) {
	retryer := newRetryer()

	if retryer == nil {
		t.Fatal("expected non-nil retryer")
	}

	if _, ok := retryer.(*retry.Standard); !ok {
		t.Error("expected retryer to be *retry.Standard")
	}
}

func TestNewRetryer_MaxAttempts(t *testing.T) {
	retryer := newRetryer()

	maxAttempts := retryer.MaxAttempts()
	if maxAttempts != 5 {
		t.Errorf("expected MaxAttempts = 5, got %d", maxAttempts)
	}
}

func TestNewRetryer_NilErrorNotRetryable(t *testing.T) {
	if newRetryer().IsErrorRetryable(nil) {
		t.Error("expected nil error to be non-retryable")
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(aws.Config{Region: "us-east-1"})

	if client.region != "us-east-1" {
		t.Errorf("expected region = us-east-1, got %s", client.region)
	}
	if client.ec2Client == nil {
		t.Error("expected non-nil ec2Client")
	}
	if client.cache == nil {
		t.Error("expected non-nil cache")
	}
	if client.waitTimeout != 5*time.Minute {
		t.Errorf("expected waitTimeout = 5m, got %v", client.waitTimeout)
	}
}

func TestNewClientWithAPI_SkipsWaiters(t *testing.T) {
	client := NewClientWithAPI(newFakeEC2(), "eu-west-1")

	if client.Region() != "eu-west-1" {
		t.Errorf("expected region eu-west-1, got %s", client.Region())
	}
	if client.waitTimeout != 0 {
		t.Errorf("expected no waiter timeout, got %v", client.waitTimeout)
	}
}

func TestTTLCache_SetAndGet(t *testing.T) {
	cache := newTTLCache(5*time.Minute, 100)

	cache.set("key1", "value1")

	val, ok := cache.get("key1")
	if !ok {
		t.Fatal("expected key1 to exist")
	}
	if val != "value1" {
		t.Errorf("expected value1, got %v", val)
	}
}

func TestTTLCache_GetMissing(t *testing.T) {
	cache := newTTLCache(5*time.Minute, 100)

	if _, ok := cache.get("nonexistent"); ok {
		t.Error("expected key to not exist")
	}
}

func TestTTLCache_Expiration(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := newTTLCache(time.Minute, 100)
	cache.now = func() time.Time { return now }

	cache.set("key1", "value1")
	if _, ok := cache.get("key1"); !ok {
		t.Fatal("expected key1 to exist immediately after set")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := cache.get("key1"); ok {
		t.Error("expected key1 to be expired")
	}
}

func TestTTLCache_Capacity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := newTTLCache(5*time.Minute, 3)
	cache.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	cache.set("key1", "value1")
	cache.set("key2", "value2")
	cache.set("key3", "value3")
	cache.set("key4", "value4")

	if _, ok := cache.get("key1"); ok {
		t.Error("expected oldest key1 to be evicted")
	}
	for _, key := range []string{"key2", "key3", "key4"} {
		if _, ok := cache.get(key); !ok {
			t.Errorf("expected %s to exist", key)
		}
	}
}

func TestTTLCache_Overwrite(t *testing.T) {
	cache := newTTLCache(5*time.Minute, 100)

	cache.set("key1", "value1")
	cache.set("key1", "value2")

	val, ok := cache.get("key1")
	if !ok {
		t.Fatal("expected key1 to exist")
	}
	if val != "value2" {
		t.Errorf("expected value2, got %v", val)
	}
}

func TestTTLCache_DefaultValues(t *testing.T) {
	cache := newTTLCache(0, 0)

	if cache.ttl != 30*time.Second {
		t.Errorf("expected default TTL of 30 seconds, got %v", cache.ttl)
	}
	if cache.capacity != 500 {
		t.Errorf("expected default capacity of 500, got %d", cache.capacity)
	}
}

func TestTTLCache_Invalidate(t *testing.T) {
	cache := newTTLCache(5*time.Minute, 100)
	cache.set("rt:rtb-1", 1)
	cache.set("rt:rtb-2", 2)
	cache.set("subnet:subnet-1", 3)

	cache.invalidate("rt:rtb-1")
	if _, ok := cache.get("rt:rtb-1"); ok {
		t.Error("expected rt:rtb-1 to be invalidated")
	}
	if _, ok := cache.get("rt:rtb-2"); !ok {
		t.Error("expected rt:rtb-2 to remain")
	}

	cache.invalidatePrefix("rt:")
	if _, ok := cache.get("rt:rtb-2"); ok {
		t.Error("expected rt:rtb-2 to be invalidated by prefix")
	}
	if _, ok := cache.get("subnet:subnet-1"); !ok {
		t.Error("expected subnet entry to survive a route table prefix invalidation")
	}
}

func TestCacheKey(t *testing.T) {
	client := NewClientWithAPI(newFakeEC2(), "us-east-1")

	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"vpc", "vpc-12345"}, "vpc:vpc-12345"},
		{[]string{"rt", ""}, "rt:"},
		{[]string{"assoc", "rtb-1", "subnet-2"}, "assoc:rtb-1:subnet-2"},
	}
	for _, tt := range tests {
		if got := client.cacheKey(tt.parts...); got != tt.want {
			t.Errorf("cacheKey(%v) = %s, want %s", tt.parts, got, tt.want)
		}
	}
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	cache := newTTLCache(5*time.Minute, 1000)

	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 100; j++ {
				key := "key" + string(rune('0'+id))
				cache.set(key, id*100+j)
				cache.get(key)
				if j%10 == 0 {
					cache.invalidatePrefix("key")
				}
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
