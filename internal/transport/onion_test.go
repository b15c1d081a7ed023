package transport

import (
	"strings"
	"testing"
)

// Generated from all-zero and sequential 32-byte public keys. They belong to
// no real service.
const (
	testOnionV3Addr1 = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion"
	testOnionV3Addr2 = "aaaqeayeaudaocajbifqydiob4ibceqtcqkrmfyydenbwha5dyp3kead.onion"
)

func TestIsValidV3Address(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{name: "valid", address: testOnionV3Addr1, want: true},
		{name: "valid sequential key", address: testOnionV3Addr2, want: true},
		{name: "uppercase", address: strings.ToUpper(testOnionV3Addr1), want: true},
		{name: "subdomain", address: "www." + testOnionV3Addr1, want: true},
		{name: "v2 address", address: "facebookcorewwwi.onion", want: false},
		{name: "too long", address: strings.Repeat("a", 57) + ".onion", want: false},
		{name: "missing suffix", address: strings.Repeat("a", 56), want: false},
		{name: "invalid characters", address: strings.Repeat("1", 56) + ".onion", want: false},
		{name: "wrong checksum", address: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqe.onion", want: false},
		{name: "nested subdomain", address: "a.b." + testOnionV3Addr1, want: false},
		{name: "empty", address: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsValidV3Address(tt.address); got != tt.want {
				t.Errorf("IsValidV3Address(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestIsOnionHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		want bool
	}{
		{testOnionV3Addr1, true},
		{testOnionV3Addr1 + ":8080", true},
		{"WWW.EXAMPLE.ONION", true},
		{"example.onion.", true},
		{"example.org", false},
		{"onion.example.org", false},
		{"127.0.0.1:80", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			t.Parallel()
			if got := IsOnionHost(tt.host); got != tt.want {
				t.Errorf("IsOnionHost(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}
