package main

import (
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/uhyunpark/tickbook/params"
	"github.com/uhyunpark/tickbook/pkg/app/core"
	"github.com/uhyunpark/tickbook/pkg/app/core/account"
	"github.com/uhyunpark/tickbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/tickbook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("") // "" means load from .env in current directory
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Log.File != "" {
		logger, err = util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Level)
	} else {
		logger, err = util.NewLogger(cfg.Log.Level)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "level", cfg.Log.Level, "log_file", cfg.Log.File)

	// ---- Ledger ----
	ledger := account.NewLedger(logger.Named("ledger"))
	for _, id := range []uint64{cfg.Session.Account, cfg.Session.Counterparty} {
		if err := ledger.Deposit(id, account.USD, cfg.Session.USD); err != nil {
			sugar.Fatalw("funding_failed", "account", id, "error", err)
		}
		if err := ledger.Deposit(id, account.OSMO, cfg.Session.OSMO); err != nil {
			sugar.Fatalw("funding_failed", "account", id, "error", err)
		}
	}

	// ---- Book ----
	// metrics stay in-process; nothing serves them
	reg := prometheus.NewRegistry()
	metrics, err := orderbook.NewMetrics(reg)
	if err != nil {
		sugar.Fatalw("metrics_init_failed", "error", err)
	}
	book := core.NewOrderbook(cfg.Book.ID, ledger,
		orderbook.WithPair(core.Pair{Quote: cfg.Book.QuoteCurrency(), Base: cfg.Book.BaseCurrency()}),
		orderbook.WithLogger(logger.Named("book")),
		orderbook.WithMetrics(metrics),
	)
	sugar.Infow("book_ready",
		"book", book.ID(),
		"quote", book.QuoteAsset().String(),
		"base", book.BaseAsset().String(),
		"escrow_account", book.EscrowAccount(),
	)

	s := &session{
		book:         book,
		ledger:       ledger,
		account:      cfg.Session.Account,
		counterparty: cfg.Session.Counterparty,
		out:          os.Stdout,
		log:          sugar,
	}
	if err := s.seed(); err != nil {
		sugar.Fatalw("seed_failed", "error", err)
	}
	sugar.Infow("session_started", "account", s.account, "counterparty", s.counterparty)

	if err := s.run(os.Stdin); err != nil {
		sugar.Errorw("session_input_failed", "error", err)
	}

	families, err := reg.Gather()
	if err != nil {
		sugar.Warnw("metrics_gather_failed", "error", err)
	}
	sugar.Infow("session_closed",
		"metric_families", len(families),
		"usd_total", ledger.Total(account.USD),
		"osmo_total", ledger.Total(account.OSMO),
	)
}
