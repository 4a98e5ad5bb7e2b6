package geoip

import (
	"errors"
	"testing"
)

func TestNewResolverWithoutPath(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil || r != nil {
		t.Fatalf("NewResolver(blank) = %v, %v; want nil, nil", r, err)
	}
}

func TestResolverCountryCode(t *testing.T) {
	var r *Resolver
	tests := []struct {
		name    string
		ip      string
		want    string
		wantErr error
	}{
		{name: "loopback", ip: "127.0.0.1", want: ""},
		{name: "private with port", ip: "10.1.2.3:443", want: ""},
		{name: "private v6 bracketed", ip: "[fd00::1]:80", want: ""},
		{name: "public without database", ip: "203.0.113.4", wantErr: ErrUnavailable},
		{name: "mapped v4", ip: "::ffff:192.168.0.1", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.CountryCode(tc.ip)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("CountryCode(%q) error = %v, want %v", tc.ip, err, tc.wantErr)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("CountryCode(%q) = %q, %v; want %q", tc.ip, got, err, tc.want)
			}
		})
	}

	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatal("expected error for malformed ip")
	}
}
