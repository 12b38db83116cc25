package provider

import (
	"strings"
	"time"
)

// SourceOkta is the source tag written on every entity ingested from Okta.
const SourceOkta = "okta"

// AppStatusActive is the only application status the engine ingests.
const AppStatusActive = "ACTIVE"

// User is a directory user as the provider returns it.
type User struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Created   *time.Time     `json:"created"`
	LastLogin *time.Time     `json:"lastLogin"`
	Profile   map[string]any `json:"profile"`

	// Raw is the undecoded record, used for attribute expressions.
	Raw map[string]any `json:"-"`
}

// Email returns profile.email, or "" when absent or not a string.
func (u User) Email() string {
	return profileString(u.Profile, "email")
}

// Application is an application integration as the provider returns it.
type Application struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Label      string         `json:"label"`
	Status     string         `json:"status"`
	SignOnMode string         `json:"signOnMode"`
	Created    *time.Time     `json:"created"`
	Settings   map[string]any `json:"settings"`

	Raw map[string]any `json:"-"`
}

// IsActive reports whether the application has the provider's active status.
func (a Application) IsActive() bool {
	return strings.EqualFold(strings.TrimSpace(a.Status), AppStatusActive)
}

// AppUser is one user's assignment to an application. ID is the user's id.
type AppUser struct {
	ID      string         `json:"id"`
	Scope   string         `json:"scope"`
	Status  string         `json:"status"`
	Created *time.Time     `json:"created"`
	Profile map[string]any `json:"profile"`
}

// Role returns profile.role, or "" when absent.
func (a AppUser) Role() string {
	return profileString(a.Profile, "role")
}

func profileString(profile map[string]any, key string) string {
	value, ok := profile[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
