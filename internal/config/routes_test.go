package config

import "testing"

func TestRouteTableIsPublic(t *testing.T) {
	table := NewRouteTable([]PublicRoute{
		{Method: "GET", Path: "/healthz"},
		{Method: "*", Path: "/api/v1/catalog/*"},
		{Method: "POST", Path: "/api/v1/session"},
	})

	tests := []struct {
		method, path string
		want         bool
	}{
		{"GET", "/healthz", true},
		{"get", "/healthz", true},
		{"POST", "/healthz", false},
		{"GET", "/api/v1/catalog", true},
		{"DELETE", "/api/v1/catalog/chapters/12", true},
		{"GET", "/api/v1/catalogs", false},
		{"POST", "/api/v1/session", true},
		{"GET", "/api/v1/session", false},
		{"GET", "/api/v1/keys", false},
	}

	for _, tt := range tests {
		if got := table.IsPublic(tt.method, tt.path); got != tt.want {
			t.Errorf("IsPublic(%s %s) = %v, want %v", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestRouteTableEmpty(t *testing.T) {
	table := NewRouteTable(nil)
	if table.IsPublic("GET", "/healthz") {
		t.Error("empty table should mark nothing public")
	}
}
