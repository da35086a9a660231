package models

// Actor is whoever is reading or writing reports. It is a closed set:
// Tenant sees only its own reports, Administrator sees every tenant's.
type Actor interface {
	// ID is the authenticated user id, used for logging.
	ID() string
	actor()
}

// Tenant is a regular user scoped to the reports they own.
type Tenant struct {
	UserID string
}

func (t Tenant) ID() string { return t.UserID }
func (Tenant) actor()       {}

// Administrator has cross-tenant read access.
type Administrator struct {
	UserID string
}

func (a Administrator) ID() string { return a.UserID }
func (Administrator) actor()       {}
