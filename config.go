package unifs

import (
	"time"

	"emperror.dev/errors"
	"github.com/dustin/go-humanize"
	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Logging
	LogLevel  string `env:"UNIFS_LOG_LEVEL,default:warn"`
	LogFormat string `env:"UNIFS_LOG_FORMAT,default:console"` // console or json

	// Local-relative provider: base directory for "~" paths.
	// Empty means the directory of the running executable.
	LocalBaseDir string `env:"UNIFS_LOCAL_BASE_DIR"`

	// FTP provider configuration
	FTPTimeout       string `env:"UNIFS_FTP_TIMEOUT,default:30s"`
	FTPImplicitTLS   bool   `env:"UNIFS_FTP_IMPLICIT_TLS,default:false"`
	FTPTLSSkipVerify bool   `env:"UNIFS_FTP_TLS_SKIP_VERIFY,default:false"`

	// HTTP provider configuration
	HTTPTimeout   string `env:"UNIFS_HTTP_TIMEOUT,default:30s"`
	HTTPRetryMax  int    `env:"UNIFS_HTTP_RETRY_MAX,default:0"`
	HTTPUserAgent string `env:"UNIFS_HTTP_USER_AGENT,default:unifs/1.0"`

	// SFTP provider configuration
	SFTPTimeout    string `env:"UNIFS_SFTP_TIMEOUT,default:30s"`
	SFTPPrivateKey string `env:"UNIFS_SFTP_PRIVATE_KEY"` // Path to private key file
	SFTPKnownHosts string `env:"UNIFS_SFTP_KNOWN_HOSTS"` // Path to known_hosts; empty skips host key checks

	// Memory provider: total size limit such as "64MB". Empty means unlimited.
	MemoryMaxSize string `env:"UNIFS_MEMORY_MAX_SIZE"`

	// Credentials used when a handle is opened without any
	DefaultUserName string `env:"UNIFS_DEFAULT_USERNAME"`
	DefaultPassword string `env:"UNIFS_DEFAULT_PASSWORD"`
}

// GetConfig returns config loaded from environment. Variables carry the
// beaver-kit prefix: BEAVER_UNIFS_LOG_LEVEL, BEAVER_UNIFS_FTP_TIMEOUT, ...
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetConfigWithPrefix loads config from environment variables carrying a
// custom prefix instead of BEAVER_, e.g. "APP_" reads APP_UNIFS_LOG_LEVEL.
func GetConfigWithPrefix(prefix string) (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: prefix}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultCredentials returns the configured fallback credentials, or nil.
func (c *Config) DefaultCredentials() *Credentials {
	if c.DefaultUserName == "" && c.DefaultPassword == "" {
		return nil
	}
	return &Credentials{UserName: c.DefaultUserName, Password: c.DefaultPassword}
}

// Duration parses one of the duration fields. Empty means no timeout.
func (c *Config) Duration(field string) (time.Duration, error) {
	var raw string
	switch field {
	case "ftp":
		raw = c.FTPTimeout
	case "http":
		raw = c.HTTPTimeout
	case "sftp":
		raw = c.SFTPTimeout
	default:
		return 0, errors.Errorf("unknown timeout field %q", field)
	}
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s timeout", field)
	}
	if d < 0 {
		return 0, errors.Errorf("%s timeout must not be negative", field)
	}
	return d, nil
}

// validateConfig checks configuration validity
func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	for _, field := range []string{"ftp", "http", "sftp"} {
		if _, err := cfg.Duration(field); err != nil {
			return err
		}
	}
	if cfg.HTTPRetryMax < 0 {
		return errors.New("http retry max must not be negative")
	}
	if cfg.MemoryMaxSize != "" {
		if _, err := humanize.ParseBytes(cfg.MemoryMaxSize); err != nil {
			return errors.Wrapf(err, "invalid memory max size %q", cfg.MemoryMaxSize)
		}
	}
	if cfg.LogFormat != "" && cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return errors.Errorf("unknown log format: %s", cfg.LogFormat)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}
