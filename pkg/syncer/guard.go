package syncer

import (
	"strings"
)

// Settings is the configuration the guard checks before any I/O.
type Settings struct {
	ProviderDomain string
	ProviderToken  string
	StorageEnabled bool
	DatabaseURL    string
}

// SettingsSource is consulted on every invocation, so credential and toggle
// changes take effect on the next run.
type SettingsSource interface {
	SyncSettings() Settings
}

// SettingsFunc adapts a function to SettingsSource.
type SettingsFunc func() Settings

func (f SettingsFunc) SyncSettings() Settings {
	return f()
}

// StaticSettings always returns the same settings.
type StaticSettings Settings

func (s StaticSettings) SyncSettings() Settings {
	return Settings(s)
}

// CheckSettings validates settings in a fixed order: provider credentials,
// then the storage toggle, then the storage URL. The first failure wins.
func CheckSettings(s Settings) *Error {
	if strings.TrimSpace(s.ProviderDomain) == "" || strings.TrimSpace(s.ProviderToken) == "" {
		return newError(KindNotConfigured, ErrNotConfigured,
			"Okta is not configured. Set OKTA_DOMAIN and OKTA_API_TOKEN and try again.")
	}
	if !s.StorageEnabled {
		return newError(KindStorageUnavailable, ErrStorageDisabled,
			"Storage is disabled. Set DB_ENABLED=true to enable the database.")
	}
	if strings.TrimSpace(s.DatabaseURL) == "" {
		return newError(KindStorageUnavailable, ErrStorageUnconfigured,
			"Storage is not configured. Set DATABASE_URL to the Postgres connection string.")
	}
	return nil
}
