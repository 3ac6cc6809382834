// Package config resolves the archiver's runtime configuration from CLI
// flags, environment variables, and an optional YAML settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// testLimit caps non-full exports so a trial run stays cheap.
const testLimit = 10

// ErrHelp indicates the user asked for usage output; not a failure.
var ErrHelp = errors.New("help requested")

// Options are the per-invocation knobs, parsed from flags and environment.
type Options struct {
	Post     string `long:"post" env:"ARCHIVER_POST" description:"Export a single post by ID"`
	Full     bool   `long:"full" description:"Export every post in the blog"`
	Clean    bool   `long:"clean" description:"Delete the output directory before exporting"`
	Output   string `long:"output" env:"ARCHIVER_OUTPUT" description:"Output root directory (default depends on mode)"`
	Bucket   string `long:"bucket" env:"ARCHIVER_BUCKET" description:"Cloud Storage bucket to mirror the finished archive to"`
	Limit    int    `long:"limit" env:"ARCHIVER_LIMIT" description:"Maximum number of posts to export (0 = mode default)"`
	Settings string `long:"settings" env:"ARCHIVER_SETTINGS" description:"Path to an optional archive.yaml settings file"`
	Debug    bool   `long:"debug" env:"ARCHIVER_DEBUG" description:"Enable debug logging"`

	Args struct {
		BlogID string `positional-arg-name:"blog-id" required:"true" description:"Blogger blog ID to export"`
	} `positional-args:"true"`
}

// Settings are the slow-moving tunables that live in archive.yaml. Every
// field has a working default so the file is optional.
type Settings struct {
	AssetHosts      []string `yaml:"asset_hosts"`
	PageSize        int64    `yaml:"page_size"`
	TimeoutSeconds  int      `yaml:"http_timeout_seconds"`
	CredentialsJSON string   `yaml:"credentials_file"`
	TokenFile       string   `yaml:"token_file"`
}

// Config is the fully resolved configuration for one run.
type Config struct {
	BlogID     string
	Post       string
	Full       bool
	Clean      bool
	OutputRoot string
	Bucket     string
	Limit      int
	Debug      bool

	AssetHosts      []string
	PageSize        int64
	HTTPTimeout     time.Duration
	CredentialsFile string
	TokenFile       string
}

// Load parses args (excluding the program name) into a Config, layering the
// optional settings file underneath the flags.
func Load(args []string) (*Config, error) {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, ErrHelp
		}
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if opts.Full && opts.Post != "" {
		return nil, errors.New("--full and --post are mutually exclusive")
	}

	settings, err := loadSettings(opts.Settings)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BlogID:          opts.Args.BlogID,
		Post:            opts.Post,
		Full:            opts.Full,
		Clean:           opts.Clean,
		Bucket:          opts.Bucket,
		Limit:           opts.Limit,
		Debug:           opts.Debug,
		AssetHosts:      settings.AssetHosts,
		PageSize:        settings.PageSize,
		HTTPTimeout:     time.Duration(settings.TimeoutSeconds) * time.Second,
		CredentialsFile: settings.CredentialsJSON,
		TokenFile:       settings.TokenFile,
	}

	// Trial runs get a small cap so a first invocation finishes quickly.
	if !opts.Full && opts.Post == "" && cfg.Limit == 0 {
		cfg.Limit = testLimit
	}

	cfg.OutputRoot = opts.Output
	if cfg.OutputRoot == "" {
		switch {
		case opts.Full:
			cfg.OutputRoot = "blogs"
		case opts.Post != "":
			cfg.OutputRoot = "blogs_" + opts.Post
		default:
			cfg.OutputRoot = "blogs_test"
		}
	}

	return cfg, nil
}

// loadSettings reads the YAML settings file when given, then fills defaults.
func loadSettings(path string) (*Settings, error) {
	s := &Settings{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read settings %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	if len(s.AssetHosts) == 0 {
		s.AssetHosts = []string{"https://blogger.googleusercontent.com"}
	}
	if s.PageSize == 0 {
		s.PageSize = 50
	}
	if s.TimeoutSeconds == 0 {
		s.TimeoutSeconds = 30
	}
	if s.CredentialsJSON == "" {
		s.CredentialsJSON = "client_secret.json"
	}
	if s.TokenFile == "" {
		s.TokenFile = "token.json"
	}
	return s, nil
}
