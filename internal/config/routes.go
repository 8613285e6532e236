package config

import "strings"

// RouteTable answers whether a method/path pair is public, i.e. reachable
// without any credential. The gate consults it before denying an
// unauthenticated request; an empty table means everything requires auth.
type RouteTable struct {
	routes []PublicRoute
}

// NewRouteTable builds a publicity table from configuration entries.
func NewRouteTable(routes []PublicRoute) *RouteTable {
	return &RouteTable{routes: routes}
}

// IsPublic reports whether the method/path pair is in the public table.
func (t *RouteTable) IsPublic(method, path string) bool {
	for _, r := range t.routes {
		if r.Method != "*" && !strings.EqualFold(r.Method, method) {
			continue
		}
		if prefix, ok := strings.CutSuffix(r.Path, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if r.Path == path {
			return true
		}
	}
	return false
}
