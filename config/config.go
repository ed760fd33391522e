// Package config reads registry-cli configuration from YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration file.
type Config struct {
	// Backing store of the local ledger.
	Storage dbconfig.DBConfiguration `yaml:"Storage"`
	Logger  Logger                   `yaml:"Logger"`
	HTTP    HTTP                     `yaml:"HTTP"`
	RPC     RPC                      `yaml:"RPC"`
}

// Logger configures zap logger of the application.
type Logger struct {
	// One of zap levels: debug, info, warn, error.
	Level string `yaml:"Level"`
	// Either console or json.
	Encoding string `yaml:"Encoding"`
}

// HTTP configures read-only query server.
type HTTP struct {
	Listen            string        `yaml:"Listen"`
	ReadHeaderTimeout time.Duration `yaml:"ReadHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"ShutdownTimeout"`
}

// RPC configures access to the deployed registry contract.
type RPC struct {
	Endpoint string `yaml:"Endpoint"`
	// Contract address, Neo address or LE hex.
	Contract string `yaml:"Contract"`
	Wallet   string `yaml:"Wallet"`
	// Deadline of a single remote operation including transaction acceptance.
	Timeout time.Duration `yaml:"Timeout"`
}

// Default values.
const (
	DefaultStoragePath       = "registry.bolt"
	DefaultLogLevel          = "info"
	DefaultLogEncoding       = "console"
	DefaultListen            = ":8080"
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultRPCEndpoint       = "http://localhost:30333"
	DefaultRPCTimeout        = time.Minute
)

// Default returns configuration used when no file is given.
func Default() Config {
	return Config{
		Storage: dbconfig.DBConfiguration{
			Type:          dbconfig.BoltDB,
			BoltDBOptions: dbconfig.BoltDBOptions{FilePath: DefaultStoragePath},
		},
		Logger: Logger{
			Level:    DefaultLogLevel,
			Encoding: DefaultLogEncoding,
		},
		HTTP: HTTP{
			Listen:            DefaultListen,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ShutdownTimeout:   DefaultShutdownTimeout,
		},
		RPC: RPC{
			Endpoint: DefaultRPCEndpoint,
			Timeout:  DefaultRPCTimeout,
		},
	}
}

// Load reads configuration file at the given path. Fields missing in the file
// keep their default values.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	return cfg, nil
}

// Decode reads YAML configuration from r on top of the defaults. Unknown
// fields are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode YAML: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	switch c.Storage.Type {
	case dbconfig.BoltDB:
		if c.Storage.BoltDBOptions.FilePath == "" {
			return errors.New("missing BoltDB file path")
		}
	case dbconfig.LevelDB:
		if c.Storage.LevelDBOptions.DataDirectoryPath == "" {
			return errors.New("missing LevelDB data directory")
		}
	case dbconfig.InMemoryDB:
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	if _, err := zapcore.ParseLevel(c.Logger.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	switch c.Logger.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log encoding %q", c.Logger.Encoding)
	}

	return nil
}

// Build constructs logger. Debug overrides configured level.
func (l Logger) Build(debug bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if debug {
		lvl = zapcore.DebugLevel
	}

	var cfg zap.Config
	if l.Encoding == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = l.Encoding
	cfg.DisableStacktrace = !debug

	return cfg.Build()
}

// Marshal encodes configuration into YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
