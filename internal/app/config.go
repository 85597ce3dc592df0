package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

// Config groups together the configuration required by the bot.
type Config struct {
	Token    string   `env:"DISCORD_TOKEN"`
	KeysFile string   `env:"KEYS_FILE" envDefault:"config/keys.json"`
	OwnerIDs []string `env:"OWNER_IDS" envSeparator:","`

	CommandPrefix     string        `env:"COMMAND_PREFIX" envDefault:"!"`
	CommandTimeout    time.Duration `env:"COMMAND_TIMEOUT" envDefault:"10s"`
	ModuleInitTimeout time.Duration `env:"MODULE_INIT_TIMEOUT" envDefault:"30s"`

	// InvalidRequestWarningInterval emits a warning every N invalid REST
	// requests inside Discord's 10 minute window. Zero disables it.
	InvalidRequestWarningInterval int `env:"INVALID_REQUEST_WARNING_INTERVAL" envDefault:"500"`

	LockFile    string   `env:"LOCK_FILE" envDefault:"guildbot.lock"`
	MetricsAddr string   `env:"METRICS_ADDR"`
	DiskTargets []string `env:"DISK_TARGETS" envSeparator:"," envDefault:"/"`

	Log LogConfig `envPrefix:"LOG_"`
}

// LogConfig contains console and rotated file logging settings.
type LogConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	Dir        string `env:"DIR"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"14"`
	Compress   bool   `env:"COMPRESS" envDefault:"true"`
}

const (
	defaultCommandTimeout    = 10 * time.Second
	defaultModuleInitTimeout = 30 * time.Second
	defaultDiskTarget        = "/"
)

type keysFile struct {
	Discord string `json:"discord"`
}

// LoadConfig reads .env (if present) and the environment and returns a validated Config.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Token == "" {
		token, err := readKeysFile(cfg.KeysFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Token = token
	}
	if cfg.Token == "" {
		return Config{}, errors.New("missing DISCORD_TOKEN")
	}

	cfg.CommandPrefix = strings.TrimSpace(cfg.CommandPrefix)
	if cfg.CommandPrefix == "" {
		return Config{}, errors.New("COMMAND_PREFIX must not be blank")
	}
	if cfg.InvalidRequestWarningInterval < 0 {
		return Config{}, fmt.Errorf("invalid INVALID_REQUEST_WARNING_INTERVAL: %d", cfg.InvalidRequestWarningInterval)
	}

	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.ModuleInitTimeout <= 0 {
		cfg.ModuleInitTimeout = defaultModuleInitTimeout
	}

	cfg.OwnerIDs = cleanList(cfg.OwnerIDs)
	cfg.DiskTargets = cleanList(cfg.DiskTargets)
	if len(cfg.DiskTargets) == 0 {
		cfg.DiskTargets = []string{defaultDiskTarget}
	}

	return cfg, nil
}

// IsOwner reports whether the Discord user ID belongs to a configured owner.
func (c Config) IsOwner(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range c.OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// readKeysFile returns the token stored under "discord". A missing file is not an error.
func readKeysFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read keys file: %w", err)
	}

	var keys keysFile
	if err := json.Unmarshal(data, &keys); err != nil {
		return "", fmt.Errorf("decode keys file %s: %w", path, err)
	}
	return strings.TrimSpace(keys.Discord), nil
}

func cleanList(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
