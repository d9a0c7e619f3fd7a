// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names. The internal and public calendars are
// configured independently; access errors reference these names so operators
// know which value to fix.
const (
	EnvInternalCalendarID = "INTERNAL_CALENDAR_ID"
	EnvPublicCalendarID   = "PUBLIC_CALENDAR_ID"
	EnvServiceAccountFile = "GOOGLE_SERVICE_ACCOUNT_FILE"
	EnvImpersonateUser    = "GOOGLE_IMPERSONATE_USER"
	EnvStaffGroup         = "STAFF_GROUP_EMAIL"
	EnvMappingDB          = "MAPPING_DB"
	EnvListenAddr         = "LISTEN_ADDR"
	EnvAllowedOrigin      = "ALLOWED_ORIGIN"
)

type Config struct {
	InternalCalendarID string
	PublicCalendarID   string
	ServiceAccountFile string
	ImpersonateUser    string
	StaffGroup         string
	MappingDB          string
	ListenAddr         string
	AllowedOrigin      string
}

// Load reads the configuration from the environment, after loading a .env
// file when one is present. Missing required values are configuration
// errors: fatal, reported before any network call.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		InternalCalendarID: os.Getenv(EnvInternalCalendarID),
		PublicCalendarID:   os.Getenv(EnvPublicCalendarID),
		ServiceAccountFile: os.Getenv(EnvServiceAccountFile),
		ImpersonateUser:    os.Getenv(EnvImpersonateUser),
		StaffGroup:         os.Getenv(EnvStaffGroup),
		MappingDB:          os.Getenv(EnvMappingDB),
		ListenAddr:         os.Getenv(EnvListenAddr),
		AllowedOrigin:      os.Getenv(EnvAllowedOrigin),
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8080"
	}

	for _, required := range []struct {
		name  string
		value string
	}{
		{EnvInternalCalendarID, cfg.InternalCalendarID},
		{EnvPublicCalendarID, cfg.PublicCalendarID},
		{EnvServiceAccountFile, cfg.ServiceAccountFile},
	} {
		if required.value == "" {
			return nil, fmt.Errorf("config: %s is not set", required.name)
		}
	}
	return cfg, nil
}

// ServiceAccountKey reads the service-account key file.
func (c *Config) ServiceAccountKey() ([]byte, error) {
	data, err := os.ReadFile(c.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", EnvServiceAccountFile, err)
	}
	return data, nil
}

// CalendarLabels maps each calendar id back to the variable that configured
// it, for operator-facing access errors.
func (c *Config) CalendarLabels() map[string]string {
	return map[string]string{
		c.InternalCalendarID: EnvInternalCalendarID,
		c.PublicCalendarID:   EnvPublicCalendarID,
	}
}
