package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

// GetVersionInfo returns the current version and commit information.
func GetVersionInfo() (string, string) {
	return version, commit
}

func main() {
	var configPath string
	var showVersion bool

	fs := flag.NewFlagSet("bronze", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/bronze/config.yml)")
	fs.BoolVar(&showVersion, "version", false, "print version information")
	fs.String("url", "", "endpoint returning a JSON array of objects")
	fs.String("source", defaultSource, "source label stamped on every row")
	fs.Duration("timeout", defaultTimeout, "fetch timeout")
	fs.String("format", defaultFormat, "output format: json, ndjson or yaml")
	fs.String("output", "", "write rows to this file instead of stdout")
	fs.Bool("serve", false, "run the HTTP API instead of a one-shot fetch")
	fs.Int("api-port", defaultAPIPort, "HTTP API port")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Printf("Bronze - Raw Record Ingestion\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Serve {
		err = runServer(cfg)
	} else {
		err = runOnce(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges defaults, the optional config file, BRONZE_* environment
// variables and explicitly set flags, in increasing precedence.
func loadConfig(configPath string, fs *flag.FlagSet) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("BRONZE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("url", "")
	v.SetDefault("source", defaultSource)
	v.SetDefault("timeout", defaultTimeout)
	v.SetDefault("format", defaultFormat)
	v.SetDefault("output", "")
	v.SetDefault("serve", false)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("api-addr", "")
	v.SetDefault("max-body-bytes", defaultMaxBodyBytes)
	v.SetDefault("log-file", filepath.Join(home, ".local", "state", "bronze", "bronze.log"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "bronze", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if fs != nil {
		var bindErr error
		fs.Visit(func(f *flag.Flag) {
			if f.Name == "config" || f.Name == "version" {
				return
			}
			if err := v.BindFlagValue(f.Name, flagValue{f}); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return cfg, bindErr
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, statErr := os.Stat(cfg.ConfigPath); statErr != nil {
		cfg.ConfigPath = ""
	}

	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if !validFormat(cfg.Format) {
		return cfg, fmt.Errorf("invalid format: %q (want json, ndjson or yaml)", cfg.Format)
	}
	if cfg.Timeout <= 0 {
		return cfg, fmt.Errorf("invalid timeout: %v", cfg.Timeout)
	}
	if strings.TrimSpace(cfg.Source) == "" {
		return cfg, errors.New("source must not be empty")
	}
	if !cfg.Serve && strings.TrimSpace(cfg.URL) == "" {
		return cfg, errors.New("url is required unless serve is enabled")
	}
	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}

	// Expand ~ in output and log-file
	if strings.HasPrefix(cfg.Output, "~/") {
		cfg.Output = filepath.Join(home, cfg.Output[2:])
	}
	if strings.HasPrefix(cfg.LogFile, "~/") {
		cfg.LogFile = filepath.Join(home, cfg.LogFile[2:])
	}

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

// flagValue adapts a stdlib flag to viper.FlagValue.
type flagValue struct{ f *flag.Flag }

func (fv flagValue) HasChanged() bool    { return true }
func (fv flagValue) Name() string        { return fv.f.Name }
func (fv flagValue) ValueString() string { return fv.f.Value.String() }

func (fv flagValue) ValueType() string {
	switch fv.f.Value.(flag.Getter).Get().(type) {
	case bool:
		return "bool"
	case int:
		return "int"
	case int64:
		return "int64"
	default:
		return "string"
	}
}
