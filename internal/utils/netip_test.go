package utils

import (
	"net/http/httptest"
	"testing"
)

func TestIPMatcherAllow(t *testing.T) {
	m := NewIPMatcher([]string{"10.0.0.0/8", " 192.168.1.10 ", "2001:db8::/32", "not-an-ip", ""})

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"11.0.0.1", false},
		{"192.168.1.10", true},
		{"192.168.1.11", false},
		{"::ffff:10.0.0.1", true},
		{"2001:db8::1", true},
		{"2001:db9::1", false},
		{"garbage", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := m.Allow(tt.ip); got != tt.want {
			t.Errorf("Allow(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestIPMatcherEmpty(t *testing.T) {
	if !NewIPMatcher(nil).IsEmpty() {
		t.Error("nil list should yield an empty matcher")
	}
	if !NewIPMatcher([]string{"nope", " "}).IsEmpty() {
		t.Error("invalid entries should be skipped")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		trustProxy bool
		want       string
	}{
		{"remote addr only", "1.2.3.4:5555", "", "", false, "1.2.3.4"},
		{"xff ignored without trust", "1.2.3.4:5555", "9.9.9.9", "", false, "1.2.3.4"},
		{"xff first hop", "1.2.3.4:5555", "9.9.9.9, 8.8.8.8", "", true, "9.9.9.9"},
		{"real ip fallback", "1.2.3.4:5555", "", "7.7.7.7", true, "7.7.7.7"},
		{"ipv6 remote", "[2001:db8::1]:443", "", "", false, "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
