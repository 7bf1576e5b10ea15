package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/tickbook/pkg/app/core/account"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, account.OSMO, cfg.Book.QuoteCurrency())
	assert.Equal(t, account.USD, cfg.Book.BaseCurrency())
}

func TestLoadFromEnvDefaults(t *testing.T) {
	// point at a file that does not exist so a stray .env cannot interfere
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromEnvFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BOOK_ID=3\nSESSION_USD=500\nLOG_LEVEL=debug\n"), 0o600))

	// godotenv writes into the process environment; t.Setenv restores it afterwards
	for _, k := range []string{"BOOK_ID", "LOG_LEVEL"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	// variables already set win over the file
	t.Setenv("SESSION_USD", "900")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cfg.Book.ID)
	assert.Equal(t, uint64(900), cfg.Session.USD)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, uint64(100_000), cfg.Session.OSMO)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "unknown quote", mutate: func(c *Config) { c.Book.Quote = "BTC" }, field: "Quote"},
		{name: "same quote and base", mutate: func(c *Config) { c.Book.Quote = "USD" }, field: "Quote"},
		{name: "same session accounts", mutate: func(c *Config) { c.Session.Counterparty = c.Session.Account }, field: "Account"},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "loud" }, field: "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.NotEmpty(t, verrs)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}

func TestLoadFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv("BOOK_BASE", "OSMO")
	_, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}
