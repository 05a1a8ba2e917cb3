package services

import "github.com/kendall-kelly/home-services-api/models"

// Principal is the authenticated caller as reported by the identity provider
type Principal struct {
	Auth0ID string
	Email   string
	Role    string
}

// IsAdmin reports whether the caller holds the ADMIN role
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}
