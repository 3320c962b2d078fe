package unifs

import (
	"os"
	"strings"
	"testing"

	"emperror.dev/errors"
	"github.com/rs/zerolog"
)

func validConfig() *Config {
	return &Config{LogLevel: "warn", LogFormat: "console", FTPTimeout: "30s", HTTPTimeout: "30s", SFTPTimeout: "30s"}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{name: "valid config", modify: func(*Config) {}},
		{name: "empty config", modify: func(c *Config) { *c = Config{} }},
		{
			name:    "bad timeout",
			modify:  func(c *Config) { c.HTTPTimeout = "forever" },
			wantErr: true,
			errMsg:  "invalid http timeout",
		},
		{
			name:    "negative retries",
			modify:  func(c *Config) { c.HTTPRetryMax = -1 },
			wantErr: true,
			errMsg:  "http retry max must not be negative",
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: true,
			errMsg:  "unknown log format: xml",
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: true,
			errMsg:  "invalid log level",
		},
		{
			name:    "bad memory size",
			modify:  func(c *Config) { c.MemoryMaxSize = "a lot" },
			wantErr: true,
			errMsg:  "invalid memory max size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := validateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("validateConfig() error = %v, want error containing %v", err, tt.errMsg)
			}
		})
	}

	if err := validateConfig(nil); err == nil {
		t.Error("validateConfig(nil) should fail")
	}
}

func TestBuildOrder(t *testing.T) {
	stub := &stubProvider{}
	for _, name := range []string{"zz-order-b", "zz-order-a"} {
		RegisterDriver(name, func(*Config, zerolog.Logger) (*Provider, error) {
			return stub.provider(name, MatchScheme(name)), nil
		})
	}

	order := buildOrder([]string{"zz-order-b", "not-registered", "zz-order-b"})
	if order[0] != "zz-order-b" {
		t.Fatalf("buildOrder()[0] = %s, want zz-order-b", order[0])
	}

	seen := map[string]int{}
	for _, name := range order {
		seen[name]++
	}
	if seen["zz-order-b"] != 1 || seen["zz-order-a"] != 1 {
		t.Errorf("each driver must appear once: %v", order)
	}
	if seen["not-registered"] != 0 {
		t.Errorf("unregistered names must be skipped: %v", order)
	}
	if len(order) != len(RegisteredDrivers()) {
		t.Errorf("buildOrder() has %d entries, want %d", len(order), len(RegisteredDrivers()))
	}
}

func TestNew(t *testing.T) {
	stub := &stubProvider{}
	RegisterDriver("zz-new-one", func(*Config, zerolog.Logger) (*Provider, error) {
		return stub.provider("zz-new-one", MatchScheme("one")), nil
	})
	RegisterDriver("zz-new-two", func(*Config, zerolog.Logger) (*Provider, error) {
		return stub.provider("zz-new-two", MatchScheme("one", "two")), nil
	})

	t.Run("provider order decides priority", func(t *testing.T) {
		reg, err := New(validConfig(), WithLogger(zerolog.Nop()), WithProviderOrder("zz-new-two", "zz-new-one"))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		p, err := reg.Resolve("one://x")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.Name != "zz-new-two" {
			t.Errorf("Resolve() = %s, want zz-new-two", p.Name)
		}
	})

	t.Run("explicit providers come first", func(t *testing.T) {
		reg, err := New(validConfig(), WithLogger(zerolog.Nop()), WithProviders(stub.provider("custom", MatchScheme("one"))))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		p, _ := reg.Resolve("one://x")
		if p == nil || p.Name != "custom" {
			t.Errorf("Resolve() = %v, want custom", p)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := validConfig()
		cfg.LogFormat = "xml"
		if _, err := New(cfg); err == nil {
			t.Error("New() should fail on invalid config")
		}
	})

	t.Run("failing driver", func(t *testing.T) {
		RegisterDriver("zz-new-broken", func(*Config, zerolog.Logger) (*Provider, error) {
			return nil, errors.New("boom")
		})
		t.Cleanup(func() {
			factoryMutex.Lock()
			delete(driverFactories, "zz-new-broken")
			factoryMutex.Unlock()
		})

		_, err := New(validConfig(), WithLogger(zerolog.Nop()))
		if err == nil || !strings.Contains(err.Error(), "failed to create driver zz-new-broken") {
			t.Errorf("New() error = %v", err)
		}
	})
}

func TestGlobalInstance(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	os.Setenv("BEAVER_UNIFS_LOG_LEVEL", "error")
	defer os.Unsetenv("BEAVER_UNIFS_LOG_LEVEL")

	reg1, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	reg2, _ := Default()
	if reg1 != reg2 {
		t.Error("Default() should return the same registry")
	}

	Reset()
	if err := Init(validConfig()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	reg3, _ := Default()
	if reg3 == reg1 {
		t.Error("Reset() should drop the global registry")
	}

	Reset()
	bad := validConfig()
	bad.LogLevel = "loud"
	if err := Init(bad); err == nil {
		t.Error("Init() should fail on invalid config")
	}
	if _, err := Dir("/tmp"); err == nil {
		t.Error("Dir() should report the init error")
	}
	if _, err := Open("/tmp/a.txt"); err == nil {
		t.Error("Open() should report the init error")
	}
}
