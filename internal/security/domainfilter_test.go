package security

import "testing"

func TestCheckDomain(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		allowed []string
		blocked []string
		wantErr bool
	}{
		{"no lists allows anything", "https://example.com/a", nil, nil, false},
		{"blocked wins over empty allowlist", "https://evil.example/a", nil, []string{"evil.example"}, true},
		{"allowlist permits exact match", "https://example.com/a", []string{"example.com"}, nil, false},
		{"allowlist rejects unlisted host", "https://other.com/a", []string{"example.com"}, nil, true},
		{"wildcard allows subdomain", "https://a.example.com/a", []string{"*.example.com"}, nil, false},
		{"wildcard does not match apex", "https://example.com/a", []string{"*.example.com"}, nil, true},
		{"blocked wildcard beats allowlist", "https://a.example.com/a", []string{"*.example.com"}, []string{"*.example.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDomain(tt.url, tt.allowed, tt.blocked)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckDomain(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestCheckDomain_InvalidURL(t *testing.T) {
	err := CheckDomain("://not a url", nil, nil)
	if err != ErrInvalidURL {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}
