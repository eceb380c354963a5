package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/subvote/internal/abuse"
	"github.com/roach88/subvote/internal/config"
	"github.com/roach88/subvote/internal/decision"
	"github.com/roach88/subvote/internal/dnsprovider"
	"github.com/roach88/subvote/internal/notify"
	"github.com/roach88/subvote/internal/store"
	"github.com/roach88/subvote/internal/submission"
)

// runtime is the service graph a command works with.
type runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	store       *store.Store
	provider    dnsprovider.Provider
	telegram    *notify.Telegram // nil when no bot token is configured
	engine      *decision.Engine
	submissions *submission.Service
	reports     *abuse.Service
	out         *OutputFormatter
}

// openRuntime loads configuration, opens the database and wires the
// provider, channels and engine. The caller must Close it.
func openRuntime(opts *RootOptions, cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.LoadWith(opts.ConfigPath, opts.EnvFile, opts.LookupEnv)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	logger := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeConfig, "failed to configure dns provider", err)
	}

	var channel decision.ReviewChannel = notify.NopChannel{}
	var tg *notify.Telegram
	if cfg.Telegram.BotToken != "" {
		tg, err = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.GroupChatID, cfg.Telegram.APIBaseURL)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, ErrCodeConfig, "failed to configure telegram", err)
		}
		channel = tg
	}

	var mailer decision.Mailer = notify.LogMailer{Logger: logger}
	if cfg.SMTP.Host != "" {
		m, err := notify.NewSMTPMailer(cfg.Mail())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, ErrCodeConfig, "failed to configure smtp", err)
		}
		mailer = m
	}

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}

	clock := decision.ClockFunc(opts.Now)
	engine := decision.New(st, provider, channel, mailer, cfg.Decision(),
		decision.WithLogger(logger), decision.WithClock(clock))
	subs, err := submission.New(st, provider, channel, mailer, cfg.ParentDomain, cfg.Voting.Window.Std(),
		submission.WithLogger(logger), submission.WithClock(clock))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, ErrCodeConfig, "invalid parent domain", err)
	}
	reports, err := abuse.New(st, provider, channel, cfg.ParentDomain,
		abuse.WithLogger(logger), abuse.WithClock(clock))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, ErrCodeConfig, "invalid parent domain", err)
	}

	return &runtime{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		provider:    provider,
		telegram:    tg,
		engine:      engine,
		submissions: subs,
		reports:     reports,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

// Close closes the database.
func (r *runtime) Close() {
	if err := r.store.Close(); err != nil {
		r.logger.Error("error closing database", "error", err)
	}
}

func newProvider(cfg config.Config) (dnsprovider.Provider, error) {
	var (
		p   dnsprovider.Provider
		err error
	)
	switch cfg.DNS.Provider {
	case "cloudflare":
		p, err = dnsprovider.NewCloudflare(cfg.DNS.Cloudflare.ZoneID, cfg.DNS.Cloudflare.APIToken, cfg.DNS.Cloudflare.BaseURL)
	case "digitalocean":
		p, err = dnsprovider.NewDigitalOcean(cfg.DNS.DigitalOcean.Token, cfg.DNS.DigitalOcean.Domain)
	case "memory":
		p = dnsprovider.NewMemory()
	default:
		return nil, fmt.Errorf("unknown dns provider %q", cfg.DNS.Provider)
	}
	if err != nil {
		return nil, err
	}
	return dnsprovider.WithRateLimit(p, cfg.DNS.RateLimit.RPS, cfg.DNS.RateLimit.Burst), nil
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg config.Log, verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
