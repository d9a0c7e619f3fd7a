package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv(EnvInternalCalendarID, "internal@group.calendar.google.com")
	t.Setenv(EnvPublicCalendarID, "public@group.calendar.google.com")
	t.Setenv(EnvServiceAccountFile, "/etc/calsync/sa.json")
}

func TestLoad(t *testing.T) {
	setRequired(t)
	t.Setenv(EnvImpersonateUser, "admin@gracechapel.org")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "internal@group.calendar.google.com", cfg.InternalCalendarID)
	assert.Equal(t, "admin@gracechapel.org", cfg.ImpersonateUser)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv(EnvPublicCalendarID, "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvPublicCalendarID)
}

func TestCalendarLabels(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	labels := cfg.CalendarLabels()
	assert.Equal(t, EnvInternalCalendarID, labels["internal@group.calendar.google.com"])
	assert.Equal(t, EnvPublicCalendarID, labels["public@group.calendar.google.com"])
}
