package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

const minimalYAML = `
parent_domain: example.org
dns:
  provider: memory
`

func TestDefault_NeedsOnlyParentDomain(t *testing.T) {
	cfg := Default()
	cfg.ParentDomain = "example.org"
	cfg.DNS.Provider = "memory"

	assert.NoError(t, cfg.Validate())
}

func TestLoadWith_YAML(t *testing.T) {
	path := writeFile(t, "subvote.yaml", `
database: /var/lib/subvote/subvote.db
parent_domain: example.org
voting:
  quorum: 3
  window: 6h
  sweep_interval: 30s
dns:
  provider: cloudflare
  ttl: 300
  rate_limit:
    rps: 0.5
    burst: 2
  cloudflare:
    zone_id: zone-1
    api_token: cf-token
telegram:
  bot_token: "123:abc"
  group_chat_id: "-100200"
  poll_timeout: 10s
smtp:
  host: smtp.example.org
  from: noreply@example.org
http:
  listen: ":8080"
  api_token: secret
  cors_origins:
    - https://dash.example.org
log:
  level: debug
  format: json
`)

	cfg, err := LoadWith(path, "", envOf(nil))

	require.NoError(t, err)
	assert.Equal(t, "/var/lib/subvote/subvote.db", cfg.Database)
	assert.Equal(t, 3, cfg.Voting.Quorum)
	assert.Equal(t, 6*time.Hour, cfg.Voting.Window.Std())
	assert.Equal(t, 30*time.Second, cfg.Voting.SweepInterval.Std())
	assert.Equal(t, 0.5, cfg.DNS.RateLimit.RPS)
	assert.Equal(t, "zone-1", cfg.DNS.Cloudflare.ZoneID)
	assert.Equal(t, 10*time.Second, cfg.Telegram.PollTimeout.Std())
	assert.Equal(t, 587, cfg.SMTP.Port, "unset keys keep defaults")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"https://dash.example.org"}, cfg.HTTP.CORSOrigins)

	policy := cfg.Decision()
	assert.Equal(t, 3, policy.Quorum)
	assert.Equal(t, 300, policy.RecordTTL)
	assert.Equal(t, "smtp.example.org", cfg.Mail().Host)
}

func TestLoadWith_EnvOverridesFileAndDotenv(t *testing.T) {
	path := writeFile(t, "subvote.yaml", minimalYAML+`
telegram:
  bot_token: from-file
  group_chat_id: "-1"
`)
	dotenv := writeFile(t, ".env", "SUBVOTE_TELEGRAM_BOT_TOKEN=from-dotenv\nSUBVOTE_HTTP_API_TOKEN=dotenv-api\nSUBVOTE_VOTING_WINDOW=1h\n")

	cfg, err := LoadWith(path, dotenv, envOf(map[string]string{
		"SUBVOTE_TELEGRAM_BOT_TOKEN": "from-env",
		"SUBVOTE_VOTING_QUORUM":      "4",
	}))

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.BotToken)
	assert.Equal(t, "dotenv-api", cfg.HTTP.APIToken)
	assert.Equal(t, time.Hour, cfg.Voting.Window.Std())
	assert.Equal(t, 4, cfg.Voting.Quorum)
}

func TestLoadWith_MissingDotenvIsIgnored(t *testing.T) {
	path := writeFile(t, "subvote.yaml", minimalYAML)

	cfg, err := LoadWith(path, filepath.Join(t.TempDir(), "absent.env"), envOf(nil))

	require.NoError(t, err)
	assert.Equal(t, "example.org", cfg.DNS.DigitalOcean.Domain, "domain defaults to the parent")
}

func TestLoadWith_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown key",
			yaml:    minimalYAML + "colour: blue\n",
			wantErr: "colour",
		},
		{
			name:    "bad duration",
			yaml:    minimalYAML + "voting:\n  window: soon\n",
			wantErr: "invalid duration",
		},
		{
			name:    "missing parent domain",
			yaml:    "dns:\n  provider: memory\n",
			wantErr: "parent_domain",
		},
		{
			name:    "unknown provider",
			yaml:    "parent_domain: example.org\ndns:\n  provider: route53\n",
			wantErr: "provider",
		},
		{
			name:    "cloudflare without token",
			yaml:    "parent_domain: example.org\ndns:\n  provider: cloudflare\n  cloudflare:\n    zone_id: z\n",
			wantErr: "api_token",
		},
		{
			name:    "digitalocean without token",
			yaml:    "parent_domain: example.org\ndns:\n  provider: digitalocean\n",
			wantErr: "token",
		},
		{
			name:    "http without api token",
			yaml:    minimalYAML + "http:\n  listen: \":8080\"\n",
			wantErr: "api_token",
		},
		{
			name:    "bot without group",
			yaml:    minimalYAML + "telegram:\n  bot_token: t\n",
			wantErr: "group_chat_id",
		},
		{
			name:    "cors origin without scheme",
			yaml:    minimalYAML + "http:\n  cors_origins: [dash.example.org]\n",
			wantErr: "cors_origins",
		},
		{
			name:    "bad log level",
			yaml:    minimalYAML + "log:\n  level: loud\n",
			wantErr: "level",
		},
		{
			name:    "zero quorum",
			yaml:    minimalYAML + "voting:\n  quorum: 0\n",
			wantErr: "quorum",
		},
		{
			name:    "zero window",
			yaml:    minimalYAML + "voting:\n  window: 0s\n",
			wantErr: "voting window",
		},
		{
			name:    "bad env number",
			yaml:    minimalYAML,
			env:     map[string]string{"SUBVOTE_SMTP_PORT": "smtp"},
			wantErr: "SUBVOTE_SMTP_PORT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "subvote.yaml", tt.yaml)

			_, err := LoadWith(path, "", envOf(tt.env))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWith_MissingFile(t *testing.T) {
	_, err := LoadWith(filepath.Join(t.TempDir(), "nope.yaml"), "", envOf(nil))

	assert.ErrorContains(t, err, "read config")
}

func TestDuration_YAMLRoundTrip(t *testing.T) {
	v, err := Duration(90 * time.Second).MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", v)
}
