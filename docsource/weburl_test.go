package docsource

import (
	"net"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid https", "https://docs.example.com/guidelines", false},
		{"http rejected", "http://docs.example.com/guidelines", true},
		{"localhost", "https://localhost/page", true},
		{"loopback ip", "https://127.0.0.1/page", true},
		{"private ip", "https://192.168.1.10/page", true},
		{"ten net", "https://10.0.0.5/page", true},
		{"cgnat", "https://100.64.0.1/page", true},
		{"local domain", "https://wiki.corp.local/page", true},
		{"internal domain", "https://docs.internal/page", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", tt.url, err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{"127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.0.1", "100.64.1.1", "fe80::1", "fc00::1", "::ffff:192.168.1.1"}
	for _, s := range private {
		if !IsPrivateIP(net.ParseIP(s)) {
			t.Errorf("IsPrivateIP(%s) = false, want true", s)
		}
	}
	public := []string{"8.8.8.8", "1.1.1.1", "2606:4700:4700::1111"}
	for _, s := range public {
		if IsPrivateIP(net.ParseIP(s)) {
			t.Errorf("IsPrivateIP(%s) = true, want false", s)
		}
	}
}
