package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Client holds the CLI's runtime configuration.
type Client struct {
	ServerURL      string        `yaml:"server_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// TokenBackend is "file" or "redis" and selects the durable token tier.
	TokenBackend     string `yaml:"token_backend"`
	TokenPath        string `yaml:"token_path"`
	SessionTokenPath string `yaml:"session_token_path"`
	RedisAddr        string `yaml:"redis_addr"`
	RedisKey         string `yaml:"redis_key"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
	MetricsFile      string `yaml:"metrics_file"`
}

// Server holds the reference server's configuration.
type Server struct {
	Env            string        `yaml:"env"`
	HTTPPort       string        `yaml:"http_port"`
	JWTIssuer      string        `yaml:"jwt_issuer"`
	JWTSigningKey  string        `yaml:"jwt_signing_key"`
	AccessTTL      time.Duration `yaml:"access_ttl"`
	AuthRatePerMin int           `yaml:"auth_rate_per_min"`
	BcryptCost     int           `yaml:"bcrypt_cost"`
	AccessLog      bool          `yaml:"access_log"`
	LogLevel       string        `yaml:"log_level"`
}

// File is the layout of the optional YAML config file.
type File struct {
	Client Client `yaml:"client"`
	Server Server `yaml:"server"`
}

// DefaultClient returns the built-in client defaults.
func DefaultClient() Client {
	return Client{
		ServerURL:      "http://localhost:3000",
		RequestTimeout: 15 * time.Second,
		TokenBackend:   "file",
		RedisAddr:      "localhost:6379",
		RedisKey:       "rollbook:token",
		LogLevel:       "warn",
		LogFormat:      "auto",
	}
}

// DefaultServer returns the built-in server defaults.
func DefaultServer() Server {
	return Server{
		Env:            "dev",
		HTTPPort:       "3000",
		JWTIssuer:      "rollbook-devserver",
		JWTSigningKey:  "dev-signing-secret-change",
		AccessTTL:      12 * time.Hour,
		AuthRatePerMin: 30,
		BcryptCost:     10,
		AccessLog:      true,
		LogLevel:       "info",
	}
}

// LoadClient layers defaults, the YAML file at path (or $ROLLBOOK_CONFIG)
// and ROLLBOOK_* environment variables, later sources winning.
func LoadClient(path string) (Client, error) {
	file, err := readFile(path)
	if err != nil {
		return Client{}, err
	}
	c := file.Client
	return Client{
		ServerURL:        getEnv("ROLLBOOK_SERVER_URL", c.ServerURL),
		RequestTimeout:   durationEnv("ROLLBOOK_REQUEST_TIMEOUT", c.RequestTimeout),
		TokenBackend:     getEnv("ROLLBOOK_TOKEN_BACKEND", c.TokenBackend),
		TokenPath:        getEnv("ROLLBOOK_TOKEN_PATH", c.TokenPath),
		SessionTokenPath: getEnv("ROLLBOOK_SESSION_TOKEN_PATH", c.SessionTokenPath),
		RedisAddr:        getEnv("ROLLBOOK_REDIS_ADDR", c.RedisAddr),
		RedisKey:         getEnv("ROLLBOOK_REDIS_KEY", c.RedisKey),
		LogLevel:         getEnv("ROLLBOOK_LOG_LEVEL", c.LogLevel),
		LogFormat:        getEnv("ROLLBOOK_LOG_FORMAT", c.LogFormat),
		MetricsFile:      getEnv("ROLLBOOK_METRICS_FILE", c.MetricsFile),
	}, nil
}

// LoadServer is LoadClient for the reference server.
func LoadServer(path string) (Server, error) {
	file, err := readFile(path)
	if err != nil {
		return Server{}, err
	}
	s := file.Server
	return Server{
		Env:            getEnv("APP_ENV", s.Env),
		HTTPPort:       getEnv("ROLLBOOK_HTTP_PORT", s.HTTPPort),
		JWTIssuer:      getEnv("ROLLBOOK_JWT_ISSUER", s.JWTIssuer),
		JWTSigningKey:  getEnv("ROLLBOOK_JWT_SIGNING_KEY", s.JWTSigningKey),
		AccessTTL:      durationEnv("ROLLBOOK_ACCESS_TTL", s.AccessTTL),
		AuthRatePerMin: intEnv("ROLLBOOK_AUTH_RATE_PER_MIN", s.AuthRatePerMin),
		BcryptCost:     intEnv("ROLLBOOK_BCRYPT_COST", s.BcryptCost),
		AccessLog:      boolEnv("ROLLBOOK_ACCESS_LOG", s.AccessLog),
		LogLevel:       getEnv("ROLLBOOK_LOG_LEVEL", s.LogLevel),
	}, nil
}

// readFile returns the defaults overlaid with the YAML file, if any. A path
// given explicitly must exist; the default location may be absent.
func readFile(path string) (File, error) {
	file := File{Client: DefaultClient(), Server: DefaultServer()}
	explicit := path != ""
	if !explicit {
		path = os.Getenv("ROLLBOOK_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = defaultPath()
	}
	if path == "" {
		return file, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return file, nil
		}
		return File{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return file, nil
}

func defaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = home + "/.config"
	}
	return dir + "/rollbook/config.yaml"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			slog.Warn("invalid duration, using fallback", "key", key, "error", err, "fallback", fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(val) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
		slog.Warn("invalid bool, using fallback", "key", key, "fallback", fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		slog.Warn("invalid int, using fallback", "key", key, "fallback", fallback)
	}
	return fallback
}
