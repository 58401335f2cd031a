package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"venue/internal/api"
	"venue/internal/handler"
	"venue/internal/ledger"
	"venue/internal/match"
	"venue/internal/store"
)

func main() {
	_ = godotenv.Load()

	port := flag.String("port", envOr("VENUE_PORT", "8088"), "server port")
	dbPath := flag.String("db", envOr("VENUE_DB", "venue.db"), "SQLite database path")
	corsOrigins := flag.String("cors", os.Getenv("VENUE_CORS"), "comma-separated allowed CORS origins (empty = allow all for dev)")
	seed := flag.Bool("seed", false, "seed sample brokers, shareholders and securities if the database is empty")
	flag.Parse()

	log, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer st.Close()

	if *seed {
		if err := seedDefaults(st); err != nil {
			log.Fatal("failed to seed database", zap.Error(err))
		}
	}

	hub := api.NewHub()
	dispatcher := api.NewDispatcher(hub)
	matcher := match.NewMatcher(log)
	h := handler.NewOrderHandler(matcher, dispatcher, st, log)

	brokers, err := st.LoadBrokers()
	if err != nil {
		log.Fatal("failed to load brokers", zap.Error(err))
	}
	for _, b := range brokers {
		h.AddBroker(b)
	}
	shareholders, err := st.LoadShareholders()
	if err != nil {
		log.Fatal("failed to load shareholders", zap.Error(err))
	}
	for _, sh := range shareholders {
		h.AddShareholder(sh)
	}
	securityRows, err := st.LoadSecurities()
	if err != nil {
		log.Fatal("failed to load securities", zap.Error(err))
	}
	for _, row := range securityRows {
		sec := match.NewSecurity(row.Isin, row.TickSize, row.LotSize, log)
		sec.SetLastTransactionPrice(row.LastPrice)
		h.AddSecurity(sec)
	}
	log.Info("venue loaded",
		zap.Int("brokers", len(brokers)),
		zap.Int("shareholders", len(shareholders)),
		zap.Int("securities", len(securityRows)))

	server := api.NewServer(h, dispatcher, hub, st, log)
	if *corsOrigins != "" {
		origins := strings.Split(*corsOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		server.SetCORSOrigins(origins)
		log.Info("CORS restricted", zap.Strings("origins", origins))
	}

	httpServer := &http.Server{
		Addr:    ":" + *port,
		Handler: server.Router(),
	}

	go func() {
		log.Info("starting venue server", zap.String("addr", httpServer.Addr), zap.String("db", *dbPath))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}
	server.Shutdown()

	// Persist ledgers and last prices so a restart resumes where we stopped.
	for _, b := range brokers {
		if err := st.SaveBroker(b); err != nil {
			log.Error("failed to persist broker", zap.Int64("id", b.ID), zap.Error(err))
		}
	}
	for _, sh := range shareholders {
		if err := st.SaveShareholder(sh); err != nil {
			log.Error("failed to persist shareholder", zap.Int64("id", sh.ID), zap.Error(err))
		}
	}
	for _, sec := range h.Securities() {
		sec.Lock()
		row := store.SecurityRow{
			Isin:      sec.Isin(),
			TickSize:  sec.TickSize(),
			LotSize:   sec.LotSize(),
			LastPrice: sec.LastTransactionPrice(),
		}
		sec.Unlock()
		if err := st.SaveSecurity(row); err != nil {
			log.Error("failed to persist security", zap.String("isin", row.Isin), zap.Error(err))
		}
	}
	log.Info("shutdown complete")
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// seedDefaults lists one instrument and funds a couple of participants so a
// fresh database is immediately tradable.
func seedDefaults(st *store.Store) error {
	existing, err := st.LoadSecurities()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	if err := st.SaveSecurity(store.SecurityRow{Isin: "IRO1MAPN0001", TickSize: 1, LotSize: 1, LastPrice: 15000}); err != nil {
		return err
	}
	for id := int64(1); id <= 3; id++ {
		if err := st.SaveBroker(ledger.NewBroker(id, "broker", 100_000_000)); err != nil {
			return err
		}
		sh := ledger.NewShareholder(id, "shareholder")
		sh.IncPosition("IRO1MAPN0001", 100_000)
		if err := st.SaveShareholder(sh); err != nil {
			return err
		}
	}
	return nil
}
