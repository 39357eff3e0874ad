package middleware

import (
	"switchfleet/auth"
)

// Manager bundles the auth module for route middleware
type Manager struct {
	auth *auth.Module
}

func NewManager(authModule *auth.Module) *Manager {
	return &Manager{auth: authModule}
}
