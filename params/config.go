package params

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/uhyunpark/tickbook/pkg/app/core/account"
)

// Book selects the instrument a session trades.
type Book struct {
	ID    uint64 `env:"BOOK_ID" env-default:"0"`
	Quote string `env:"BOOK_QUOTE" env-default:"OSMO" validate:"required,currency,nefield=Base"` // traded asset
	Base  string `env:"BOOK_BASE" env-default:"USD" validate:"required,currency"`               // pricing asset
}

// Session funds the accounts the demo driver trades with.
type Session struct {
	Account      uint64 `env:"SESSION_ACCOUNT" env-default:"1" validate:"nefield=Counterparty"`
	Counterparty uint64 `env:"SESSION_COUNTERPARTY" env-default:"2"`
	USD          uint64 `env:"SESSION_USD" env-default:"1000000"`
	OSMO         uint64 `env:"SESSION_OSMO" env-default:"100000"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	File  string `env:"LOG_FILE"` // empty: stdout only
}

type Config struct {
	Book    Book
	Session Session
	Log     Log
}

func Default() Config {
	return Config{
		Book: Book{
			ID:    0,
			Quote: account.OSMO.String(),
			Base:  account.USD.String(),
		},
		Session: Session{
			Account:      1,
			Counterparty: 2,
			USD:          1_000_000,
			OSMO:         100_000,
		},
		Log: Log{Level: "info"},
	}
}

// QuoteCurrency and BaseCurrency assume a validated config.
func (b Book) QuoteCurrency() account.Currency {
	c, _ := account.ParseCurrency(b.Quote)
	return c
}

func (b Book) BaseCurrency() account.Currency {
	c, _ := account.ParseCurrency(b.Base)
	return c
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	// .env is optional; variables already set in the environment win
	var err error
	if envPath != "" {
		err = godotenv.Load(envPath)
	} else {
		err = godotenv.Load()
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envPathOrDefault(envPath), err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints: known currencies, distinct quote and base,
// distinct session accounts and a known log level.
func (c Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		_, err := account.ParseCurrency(fl.Field().String())
		return err == nil
	}); err != nil {
		return fmt.Errorf("register currency validation: %w", err)
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func envPathOrDefault(p string) string {
	if p == "" {
		return ".env"
	}
	return p
}
