package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/agentfelt/agentfelt/internal/server"
	"github.com/agentfelt/agentfelt/internal/store"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" default:"1" help:"Run the poker table server"`
}

// ServeCmd holds the server configuration. Every flag binds to an
// AGENTFELT_* environment variable.
type ServeCmd struct {
	Addr            string `kong:"default=':8080',env='AGENTFELT_ADDR',help='Listen address'"`
	DB              string `kong:"default='agentfelt.db',env='AGENTFELT_DB',help='SQLite database path'"`
	SessionTTL      int    `kong:"default='3600',env='AGENTFELT_SESSION_TTL',help='Session lifetime in seconds'"`
	ActionTimeoutMs int    `kong:"default='10000',env='AGENTFELT_ACTION_TIMEOUT_MS',help='Default action timeout in milliseconds'"`
	HandDelayMs     int    `kong:"default='2000',env='AGENTFELT_HAND_DELAY_MS',help='Pause between hands in milliseconds'"`
	AbandonGraceMs  int    `kong:"default='30000',env='AGENTFELT_ABANDON_GRACE_MS',help='Grace period before an unconnected table ends'"`
	MinPlayers      int    `kong:"default='2',env='AGENTFELT_MIN_PLAYERS',help='Minimum seated players to auto-start'"`
	AdminEmails     string `kong:"env='AGENTFELT_ADMIN_EMAILS',help='Comma-separated admin email allowlist'"`
	SessionSecret   string `kong:"env='AGENTFELT_SESSION_SECRET',help='HMAC secret for session tokens'"`
	TablesFile      string `kong:"env='AGENTFELT_TABLES_FILE',help='HCL table definitions created at boot'"`
	SkillDocURL     string `kong:"env='AGENTFELT_SKILL_DOC_URL',help='Protocol documentation URL included in error frames'"`
	Debug           bool   `kong:"env='AGENTFELT_DEBUG',help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if c.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	if c.SessionSecret == "" {
		return errors.New("AGENTFELT_SESSION_SECRET is required")
	}

	cfg := server.Config{
		Addr:          c.Addr,
		SessionTTL:    time.Duration(c.SessionTTL) * time.Second,
		ActionTimeout: time.Duration(c.ActionTimeoutMs) * time.Millisecond,
		HandDelay:     time.Duration(c.HandDelayMs) * time.Millisecond,
		AbandonGrace:  time.Duration(c.AbandonGraceMs) * time.Millisecond,
		MinPlayers:    c.MinPlayers,
		SessionSecret: c.SessionSecret,
		SkillDocURL:   c.SkillDocURL,
		DefaultSeats:  9,
		DefaultStack:  1000,
	}
	if c.AdminEmails != "" {
		for _, e := range strings.Split(c.AdminEmails, ",") {
			if e = strings.TrimSpace(e); e != "" {
				cfg.AdminEmails = append(cfg.AdminEmails, e)
			}
		}
	}

	st, err := store.OpenSQLite(c.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	clock := quartz.NewReal()
	timers := server.NewTimerFabric(clock, logger)
	manager := server.NewManager(st, timers, logger)
	registry := server.NewRegistry(logger)
	sessions := server.NewSessions(st, cfg.SessionSecret, cfg.SessionTTL, clock)
	metrics := server.NewMetrics()
	lifecycle := server.NewLifecycle(cfg, st, manager, registry, timers, metrics, logger)
	svc := server.NewService(cfg, st, manager, registry, timers, sessions, lifecycle, metrics, clock, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.TablesFile != "" {
		defs, err := server.LoadTableDefinitions(c.TablesFile)
		if err != nil {
			return err
		}
		if err := svc.ProvisionTables(ctx, defs); err != nil {
			return err
		}
		logger.Info("provisioned tables", "file", c.TablesFile, "count", len(defs))
	}

	api := server.NewAPI(svc, metrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.Router(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("agentfelt"),
		kong.Description("Realtime poker table server for autonomous agents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run())
}
