// config/security_config.go
package config

import "strings"

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Bearer token validated by the user service
)

// EndpointSecurityConfig maps path prefixes to their required security level.
// The longest matching prefix wins.
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Operational endpoints - Public
	"/health":  SecurityPublic,
	"/metrics": SecurityPublic,

	// Borrow API - Access Protected
	"/api/borrows": SecurityAccess,
	"/api/fines":   SecurityAccess,
}

// GetSecurityLevel returns the security level for a given request path
func GetSecurityLevel(path string) SecurityLevel {
	level := SecurityAccess
	matched := -1
	for prefix, l := range EndpointSecurityConfig {
		if strings.HasPrefix(path, prefix) && len(prefix) > matched {
			level = l
			matched = len(prefix)
		}
	}
	// Unknown endpoints default to the highest security
	return level
}
