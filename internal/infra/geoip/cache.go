package geoip

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedResolver memoizes country lookups per IP.
type CachedResolver struct {
	next  CountryResolver
	cache *lru.Cache[string, string]
}

// NewCachedResolver wraps next with an LRU cache of the given size.
func NewCachedResolver(next CountryResolver, size int) (*CachedResolver, error) {
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &CachedResolver{next: next, cache: cache}, nil
}

// CountryCode returns the cached code for ip, resolving and caching it on a miss.
// Failed lookups are not cached.
func (r *CachedResolver) CountryCode(ip string) (string, error) {
	if r == nil || r.next == nil {
		return "", ErrUnavailable
	}
	if code, ok := r.cache.Get(ip); ok {
		return code, nil
	}
	code, err := r.next.CountryCode(ip)
	if err != nil {
		return "", err
	}
	r.cache.Add(ip, code)
	return code, nil
}
