package proxy

import "testing"

func TestIsAllowedPort(t *testing.T) {
	cases := []struct {
		name     string
		hostPort string
		allowed  []string
		want     bool
	}{
		{"no colon is always rejected", "example.com", nil, false},
		{"empty allow-list permits any port", "example.com:80", nil, true},
		{"port in allow-list", "example.com:443", []string{"443", "80"}, true},
		{"port not in allow-list", "example.com:8080", []string{"443", "80"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := isAllowedPort(c.hostPort, allowedPortSet(c.allowed))
			if got != c.want {
				t.Errorf("isAllowedPort(%q, %v) = %v, want %v", c.hostPort, c.allowed, got, c.want)
			}
		})
	}
}
