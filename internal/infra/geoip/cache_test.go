package geoip

import (
	"errors"
	"testing"
)

type countingResolver struct {
	calls int
	codes map[string]string
}

func (c *countingResolver) CountryCode(ip string) (string, error) {
	c.calls++
	code, ok := c.codes[ip]
	if !ok {
		return "", errors.New("not found")
	}
	return code, nil
}

func TestCachedResolverMemoizesHits(t *testing.T) {
	next := &countingResolver{codes: map[string]string{"36.80.0.1": "ID"}}
	r, err := NewCachedResolver(next, 8)
	if err != nil {
		t.Fatalf("NewCachedResolver: %v", err)
	}
	for i := 0; i < 3; i++ {
		code, err := r.CountryCode("36.80.0.1")
		if err != nil || code != "ID" {
			t.Fatalf("CountryCode = %q, %v", code, err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected 1 underlying lookup, got %d", next.calls)
	}
}

func TestCachedResolverDoesNotCacheErrors(t *testing.T) {
	next := &countingResolver{codes: map[string]string{}}
	r, _ := NewCachedResolver(next, 8)
	for i := 0; i < 2; i++ {
		if _, err := r.CountryCode("10.0.0.1"); err == nil {
			t.Fatalf("expected error")
		}
	}
	if next.calls != 2 {
		t.Fatalf("expected 2 underlying lookups, got %d", next.calls)
	}
}

func TestCachedResolverWithoutBackend(t *testing.T) {
	r, _ := NewCachedResolver(nil, 8)
	if _, err := r.CountryCode("1.1.1.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
