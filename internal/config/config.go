package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/subvote/internal/decision"
	"github.com/roach88/subvote/internal/notify"
)

//go:embed schema.cue
var schemaCUE string

// Config is the complete service configuration.
type Config struct {
	Database     string   `yaml:"database" json:"database"`
	ParentDomain string   `yaml:"parent_domain" json:"parent_domain"`
	Voting       Voting   `yaml:"voting" json:"voting"`
	DNS          DNS      `yaml:"dns" json:"dns"`
	Telegram     Telegram `yaml:"telegram" json:"telegram"`
	SMTP         SMTP     `yaml:"smtp" json:"smtp"`
	HTTP         HTTP     `yaml:"http" json:"http"`
	Log          Log      `yaml:"log" json:"log"`
}

// Voting is the vote policy.
type Voting struct {
	Quorum        int      `yaml:"quorum" json:"quorum"`
	Window        Duration `yaml:"window" json:"window"`
	SweepInterval Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// DNS selects and configures the DNS provider.
type DNS struct {
	Provider     string       `yaml:"provider" json:"provider"` // cloudflare, digitalocean or memory
	TTL          int          `yaml:"ttl" json:"ttl"`
	RateLimit    RateLimit    `yaml:"rate_limit" json:"rate_limit"`
	Cloudflare   Cloudflare   `yaml:"cloudflare" json:"cloudflare"`
	DigitalOcean DigitalOcean `yaml:"digitalocean" json:"digitalocean"`
}

// RateLimit bounds provider calls. RPS 0 disables limiting.
type RateLimit struct {
	RPS   float64 `yaml:"rps" json:"rps"`
	Burst int     `yaml:"burst" json:"burst"`
}

type Cloudflare struct {
	ZoneID   string `yaml:"zone_id" json:"zone_id"`
	APIToken string `yaml:"api_token" json:"api_token"`
	BaseURL  string `yaml:"base_url" json:"base_url"`
}

type DigitalOcean struct {
	Token  string `yaml:"token" json:"token"`
	Domain string `yaml:"domain" json:"domain"` // Defaults to the parent domain
}

// Telegram configures the review channel and bot. An empty BotToken
// disables both.
type Telegram struct {
	BotToken    string   `yaml:"bot_token" json:"bot_token"`
	GroupChatID string   `yaml:"group_chat_id" json:"group_chat_id"`
	APIBaseURL  string   `yaml:"api_base_url" json:"api_base_url"`
	PollTimeout Duration `yaml:"poll_timeout" json:"poll_timeout"`
}

// SMTP configures outgoing mail. An empty Host logs mail instead of sending it.
type SMTP struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	From     string `yaml:"from" json:"from"`
}

// HTTP configures the API server. An empty Listen disables it.
type HTTP struct {
	Listen      string   `yaml:"listen" json:"listen"`
	APIToken    string   `yaml:"api_token" json:"api_token"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins,omitempty"`
}

type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Duration is a time.Duration written as "12h" or "90s" in YAML and JSON.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"12h\"", node.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// Default returns the built-in configuration.
func Default() Config {
	policy := decision.DefaultConfig()
	return Config{
		Database: "subvote.db",
		Voting: Voting{
			Quorum:        policy.Quorum,
			Window:        Duration(policy.VotingWindow),
			SweepInterval: Duration(policy.SweepInterval),
		},
		DNS: DNS{
			Provider:  "cloudflare",
			TTL:       policy.RecordTTL,
			RateLimit: RateLimit{RPS: 4, Burst: 4},
		},
		Telegram: Telegram{PollTimeout: Duration(30 * time.Second)},
		SMTP:     SMTP{Port: 587},
		Log:      Log{Level: "info", Format: "text"},
	}
}

// Load reads path (optional), ./.env (optional) and the process environment.
func Load(path string) (Config, error) {
	return LoadWith(path, ".env", os.LookupEnv)
}

// LoadWith is Load with an explicit .env path and environment lookup.
// An empty path or envFile skips that source; a missing envFile is ignored.
func LoadWith(path, envFile string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := readYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, env); err != nil {
		return Config{}, err
	}

	if cfg.DNS.DigitalOcean.Domain == "" {
		cfg.DNS.DigitalOcean.Domain = cfg.ParentDomain
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

var envStrings = map[string]func(*Config) *string{
	"SUBVOTE_DATABASE":               func(c *Config) *string { return &c.Database },
	"SUBVOTE_PARENT_DOMAIN":          func(c *Config) *string { return &c.ParentDomain },
	"SUBVOTE_DNS_PROVIDER":           func(c *Config) *string { return &c.DNS.Provider },
	"SUBVOTE_CLOUDFLARE_ZONE_ID":     func(c *Config) *string { return &c.DNS.Cloudflare.ZoneID },
	"SUBVOTE_CLOUDFLARE_API_TOKEN":   func(c *Config) *string { return &c.DNS.Cloudflare.APIToken },
	"SUBVOTE_DIGITALOCEAN_TOKEN":     func(c *Config) *string { return &c.DNS.DigitalOcean.Token },
	"SUBVOTE_TELEGRAM_BOT_TOKEN":     func(c *Config) *string { return &c.Telegram.BotToken },
	"SUBVOTE_TELEGRAM_GROUP_CHAT_ID": func(c *Config) *string { return &c.Telegram.GroupChatID },
	"SUBVOTE_SMTP_HOST":              func(c *Config) *string { return &c.SMTP.Host },
	"SUBVOTE_SMTP_USERNAME":          func(c *Config) *string { return &c.SMTP.Username },
	"SUBVOTE_SMTP_PASSWORD":          func(c *Config) *string { return &c.SMTP.Password },
	"SUBVOTE_SMTP_FROM":              func(c *Config) *string { return &c.SMTP.From },
	"SUBVOTE_HTTP_LISTEN":            func(c *Config) *string { return &c.HTTP.Listen },
	"SUBVOTE_HTTP_API_TOKEN":         func(c *Config) *string { return &c.HTTP.APIToken },
	"SUBVOTE_LOG_LEVEL":              func(c *Config) *string { return &c.Log.Level },
	"SUBVOTE_LOG_FORMAT":             func(c *Config) *string { return &c.Log.Format },
}

func applyEnv(cfg *Config, env func(string) (string, bool)) error {
	for key, field := range envStrings {
		if v, ok := env(key); ok {
			*field(cfg) = v
		}
	}

	if v, ok := env("SUBVOTE_VOTING_QUORUM"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUBVOTE_VOTING_QUORUM: %w", err)
		}
		cfg.Voting.Quorum = n
	}
	if v, ok := env("SUBVOTE_SMTP_PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUBVOTE_SMTP_PORT: %w", err)
		}
		cfg.SMTP.Port = n
	}
	for key, d := range map[string]*Duration{
		"SUBVOTE_VOTING_WINDOW":         &cfg.Voting.Window,
		"SUBVOTE_VOTING_SWEEP_INTERVAL": &cfg.Voting.SweepInterval,
	} {
		if v, ok := env(key); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*d = Duration(parsed)
		}
	}
	return nil
}

// Validate checks the configuration against the embedded schema and the
// voting policy rules.
func (c Config) Validate() error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.CompileBytes(data, cue.Filename("config")))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config:\n%s", cueerrors.Details(err, nil))
	}

	if err := c.Decision().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Decision returns the voting policy.
func (c Config) Decision() decision.Config {
	return decision.Config{
		Quorum:        c.Voting.Quorum,
		VotingWindow:  c.Voting.Window.Std(),
		SweepInterval: c.Voting.SweepInterval.Std(),
		RecordTTL:     c.DNS.TTL,
	}
}

// Mail returns the SMTP settings in the form the mailer takes.
func (c Config) Mail() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
	}
}
