// Package config loads hrclock settings from hrclock.yml, HRCLOCK_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hrclock/internal/capture"
	"hrclock/internal/hrportal"
	"hrclock/internal/worktime"
)

// Keys, also used as flag names with '_' replaced by '-'.
const (
	KeyTargetWorkday = "target_workday"
	KeyBaseURL       = "base_url"
	KeyCustomerID    = "customer_id"
	KeyCaptureHosts  = "capture_hosts"
	KeyStorePath     = "store_path"
	KeyHTTPTimeout   = "http_timeout"
	KeyListenAddr    = "listen_addr"
)

// Config is the resolved configuration.
type Config struct {
	TargetWorkday worktime.Duration
	BaseURL       string
	CustomerID    string
	CaptureHosts  []string
	StorePath     string
	HTTPTimeout   time.Duration
	ListenAddr    string

	// File is the config file that was read or created.
	File string
}

// Dir returns the per-user configuration directory for hrclock.
func Dir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error getting user home directory: %w", err)
		}
		if runtime.GOOS == "windows" {
			configHome = filepath.Join(homeDir, "AppData", "Roaming")
		} else {
			configHome = filepath.Join(homeDir, ".config")
		}
	}
	return filepath.Join(configHome, "hrclock"), nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault(KeyTargetWorkday, worktime.DefaultTarget.String())
	v.SetDefault(KeyBaseURL, hrportal.DefaultBaseURL)
	v.SetDefault(KeyCustomerID, hrportal.DefaultCustomerID)
	v.SetDefault(KeyCaptureHosts, capture.DefaultHosts)
	v.SetDefault(KeyStorePath, filepath.Join(dir, "credentials.yml"))
	v.SetDefault(KeyHTTPTimeout, "0s")
	v.SetDefault(KeyListenAddr, "127.0.0.1")
}

// Load reads file (or hrclock.yml in Dir when file is empty), writing one
// with default values if it does not exist yet. Flags that were set on the
// command line override the file and the environment.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("HRCLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		file = filepath.Join(dir, "hrclock.yml")
	}
	setDefaults(v, filepath.Dir(file))
	v.SetConfigFile(file)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return nil, fmt.Errorf("error creating config directory: %w", err)
		}
		if err := v.WriteConfigAs(file); err != nil {
			return nil, fmt.Errorf("error creating config file: %w", err)
		}
	}

	if flags != nil {
		for _, key := range []string{KeyTargetWorkday, KeyBaseURL, KeyCustomerID, KeyStorePath, KeyHTTPTimeout, KeyListenAddr} {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	target, err := worktime.ParseDuration(v.GetString(KeyTargetWorkday))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyTargetWorkday, err)
	}
	timeout, err := time.ParseDuration(v.GetString(KeyHTTPTimeout))
	if err != nil || timeout < 0 {
		return nil, fmt.Errorf("invalid %s %q, expected a duration like 30s", KeyHTTPTimeout, v.GetString(KeyHTTPTimeout))
	}

	return &Config{
		TargetWorkday: target,
		BaseURL:       v.GetString(KeyBaseURL),
		CustomerID:    v.GetString(KeyCustomerID),
		CaptureHosts:  v.GetStringSlice(KeyCaptureHosts),
		StorePath:     v.GetString(KeyStorePath),
		HTTPTimeout:   timeout,
		ListenAddr:    v.GetString(KeyListenAddr),
		File:          file,
	}, nil
}
