// Command deltabot runs the Telegram trading bot for Delta Exchange options.
// It serves updates over a webhook when WEBHOOK_URL is set and falls back to
// long polling otherwise; either way an HTTP server exposes health and
// metrics on the configured port.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/skyflexible-prog/deltamulti-modular/internal/config"
	"github.com/skyflexible-prog/deltamulti-modular/internal/delta"
	"github.com/skyflexible-prog/deltamulti-modular/internal/journal"
	"github.com/skyflexible-prog/deltamulti-modular/internal/logging"
	"github.com/skyflexible-prog/deltamulti-modular/internal/metrics"
	"github.com/skyflexible-prog/deltamulti-modular/internal/session"
	"github.com/skyflexible-prog/deltamulti-modular/internal/telegram"
	"github.com/skyflexible-prog/deltamulti-modular/internal/workflow"
)

const (
	defaultJournalFile = "./out/trades.jsonl"

	pollTimeoutSecs = 15
	shutdownTimeout = 5 * time.Second
)

// Only these update types reach the router; everything else is noise the bot
// never asked Telegram for.
var allowedUpdates = []string{"message", "callback_query"}

func main() {
	var (
		configPath  = flag.String("config", "", "YAML config path (optional; env vars override)")
		journalPath = flag.String("journal", defaultJournalFile, "Trade journal path (JSONL; empty disables)")
		listenAddr  = flag.String("listen", "", "Listen address override (host:port)")
		forcePoll   = flag.Bool("poll", false, "Long-poll for updates even when a webhook URL is configured")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warn: load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	accounts, err := config.LoadAccounts()
	if err != nil {
		log.Fatal().Err(err).Msg("account configuration")
	}
	log.Info().Int("accounts", accounts.Count()).Msg("accounts loaded")

	exchange := delta.NewExchange(delta.Config{
		BaseURL:            cfg.Exchange.BaseURL,
		PoolConnections:    cfg.Exchange.PoolConnections,
		PoolMaxSize:        cfg.Exchange.PoolMaxSize,
		ConnectTimeout:     cfg.Exchange.ConnectTimeout(),
		ReadTimeout:        cfg.Exchange.ReadTimeout(),
		MinRequestInterval: cfg.Exchange.MinRequestInterval(),
	}, log)

	tradeLog := journal.New(*journalPath)
	if tradeLog != nil {
		log.Info().Str("path", *journalPath).Msg("trade journal enabled")
		defer func() {
			if err := tradeLog.Close(); err != nil {
				log.Warn().Err(err).Msg("journal close")
			}
		}()
		defer func() {
			if err := tradeLog.Record(journal.Event{Event: "shutdown"}); err != nil {
				log.Warn().Err(err).Msg("journal write failed")
			}
		}()
		if err := tradeLog.Record(journal.Event{Event: "start"}); err != nil {
			log.Warn().Err(err).Msg("journal write failed")
		}
	}

	tg := telegram.New(cfg.Telegram.Token, "")
	router := workflow.New(workflow.Deps{
		Accounts: accounts,
		Store:    session.NewStore(),
		Exchange: exchange,
		Telegram: tg,
		Journal:  tradeLog,
		Log:      log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	useWebhook := cfg.Telegram.WebhookURL != "" && !*forcePoll
	addr := cfg.Telegram.ListenAddr()
	if *listenAddr != "" {
		addr = *listenAddr
	}

	mux := chi.NewRouter()
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Method(http.MethodGet, "/metrics", metrics.Handler())
	if useWebhook {
		// The path embeds a token digest rather than the token itself, so
		// request logs never leak credentials.
		path := "/webhook/" + webhookSecret(cfg.Telegram.Token)
		mux.Post(path, webhookHandler(ctx, router, log))

		url := strings.TrimRight(cfg.Telegram.WebhookURL, "/") + path
		if err := tg.SetWebhook(ctx, url, allowedUpdates, true); err != nil {
			log.Fatal().Err(err).Msg("set webhook")
		}
		log.Info().Str("listen", addr).Msg("webhook registered")
	} else {
		if err := tg.DeleteWebhook(ctx, false); err != nil {
			log.Warn().Err(err).Msg("delete webhook")
		}
		go pollUpdates(ctx, tg, router, log)
		log.Info().Str("listen", addr).Msg("long polling for updates")
	}

	srv := &http.Server{Addr: addr, Handler: mux}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-serveErr:
		log.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
}

// webhookSecret derives the unguessable path segment Telegram will post to.
func webhookSecret(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:16]
}

// webhookHandler acknowledges immediately and processes the update on the
// app context, so a slow exchange call never stalls Telegram's delivery.
func webhookHandler(appCtx context.Context, router *workflow.Router, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var upd telegram.Update
		body := http.MaxBytesReader(w, req.Body, 1<<20)
		if err := json.NewDecoder(body).Decode(&upd); err != nil {
			log.Warn().Err(err).Msg("webhook decode failed")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		go router.HandleUpdate(appCtx, upd)
		w.WriteHeader(http.StatusOK)
	}
}

// pollUpdates long-polls getUpdates until ctx is cancelled, backing off on
// errors and resetting the backoff after any successful fetch.
func pollUpdates(ctx context.Context, tg *telegram.Client, router *workflow.Router, log zerolog.Logger) {
	bo := backoff.NewExponentialBackOff()
	var offset int64
	for {
		updates, err := tg.GetUpdates(ctx, offset, pollTimeoutSecs, allowedUpdates)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sleep := bo.NextBackOff()
			log.Warn().Err(err).Dur("sleep", sleep).Msg("get updates failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleep):
			}
			continue
		}
		bo.Reset()
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			go router.HandleUpdate(ctx, upd)
		}
	}
}
