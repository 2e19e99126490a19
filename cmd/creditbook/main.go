package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/uhyunpark/creditbook/params"
	"github.com/uhyunpark/creditbook/pkg/api"
	"github.com/uhyunpark/creditbook/pkg/assets"
	"github.com/uhyunpark/creditbook/pkg/auth"
	"github.com/uhyunpark/creditbook/pkg/core/book"
	"github.com/uhyunpark/creditbook/pkg/core/engine"
	"github.com/uhyunpark/creditbook/pkg/core/escrow"
	"github.com/uhyunpark/creditbook/pkg/core/order"
	"github.com/uhyunpark/creditbook/pkg/core/trade"
	"github.com/uhyunpark/creditbook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logFile := cfg.API.LogFile
	if logFile == "" {
		logFile = "data/creditbook.log"
	}

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	// ---- Assets: simulated stablecoin + credit ledger ----
	// Production would wire on-chain token clients here; the gateway
	// interface is the seam.
	stable := assets.NewSimStablecoin(6)
	credits := assets.NewSimCreditLedger()
	custody := cfg.Engine.CustodyAddress()
	gateway := assets.NewGateway(stable, credits, custody)

	// ---- Access control ----
	access := auth.NewRegistry()
	admin := cfg.Engine.AdminAddress()
	if cfg.Engine.Admin != "" {
		access.Grant(admin, auth.CapManager)
		sugar.Infow("manager_granted", "address", admin.Hex())
	}

	// ---- Persistence ----
	store, err := order.NewStore(filepath.Join(cfg.Engine.DataDir, "orders"))
	if err != nil {
		sugar.Fatalw("order_store_init_failed", "err", err)
	}
	defer store.Close()

	journal, err := trade.NewJournal(filepath.Join(cfg.Engine.DataDir, "trades"))
	if err != nil {
		sugar.Fatalw("trade_journal_init_failed", "err", err)
	}
	defer journal.Close()

	ledger := escrow.NewLedger(gateway)
	index := book.NewIndex()

	// ---- Engine ----
	eng, err := engine.New(store, ledger, gateway, index, journal, access,
		util.RealClock{}, sugar, engine.Config{
			FeeBps:       cfg.Engine.FeeBps,
			MaxFeeBps:    cfg.Engine.MaxFeeBps,
			FeeRecipient: cfg.Engine.FeeRecipientAddress(),
		})
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}

	sugar.Infow("engine_ready",
		"fee_bps", cfg.Engine.FeeBps,
		"max_fee_bps", cfg.Engine.MaxFeeBps,
		"custody", custody.Hex(),
		"orders", store.Count())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	apiServer := api.NewServer(eng)
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.API.Addr)
		if err := apiServer.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")
}
