package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"netpulse/internal/logger"
	"netpulse/internal/models"
)

const (
	DefaultListen         = ":8080"
	DefaultTickInterval   = time.Second
	DefaultTimezone       = "Asia/Shanghai"
	DefaultSessionTTL     = 7 * 24 * time.Hour
	DefaultRecentSessions = 50
)

var ErrDuplicateNodeID = errors.New("duplicate node id")

type Config struct {
	Listen         string        `yaml:"listen"`
	RedisAddr      string        `yaml:"redis_addr"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	RecentSessions int           `yaml:"recent_sessions"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	Timezone       string        `yaml:"timezone"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	Log            logger.Config `yaml:"log"`
	Nodes          []models.Node `yaml:"nodes"`
}

// DefaultNodes is the hop list used when the config names none.
func DefaultNodes() []models.Node {
	return []models.Node{
		{ID: "1", Name: "kubernetes.docker.internal", Address: "127.0.0.1", Category: models.CategoryLocal},
		{ID: "2", Name: "Local Gateway", Address: "192.168.10.1", Category: models.CategoryGateway},
		{ID: "3", Name: "SMB SHARE", Address: "61.169.142.33", Category: models.CategoryWAN},
		{ID: "4", Name: "Aliyun DNS", Address: "223.5.5.5", Category: models.CategoryWAN},
		{ID: "5", Name: "Google DNS", Address: "8.8.8.8", Category: models.CategoryWAN},
		{ID: "6", Name: "Google Meet", Address: "142.250.197.14", Category: models.CategoryService},
		{ID: "7", Name: "Zoom Meeting", Address: "170.114.52.2", Category: models.CategoryService},
	}
}

// Load reads a YAML config file. An empty path yields the defaults. PORT and
// REDIS_ADDR in the environment override the file.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	applyEnv(&cfg)
	ApplyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			cfg.Listen = ":" + port
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.RecentSessions == 0 {
		cfg.RecentSessions = DefaultRecentSessions
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if len(cfg.Nodes) == 0 {
		cfg.Nodes = DefaultNodes()
	}
}

func Validate(cfg Config) error {
	if cfg.TickInterval < time.Second {
		return errors.Errorf("tick_interval must be at least 1s, got %s", cfg.TickInterval)
	}
	// The scheduler only fires on whole seconds.
	if cfg.TickInterval%time.Second != 0 {
		return errors.Errorf("tick_interval must be a whole number of seconds, got %s", cfg.TickInterval)
	}
	if _, err := Location(cfg.Timezone); err != nil {
		return err
	}
	return ValidateNodes(cfg.Nodes)
}

var validate = validator.New()

// ValidateNodes checks each node's fields and that ids are unique.
func ValidateNodes(nodes []models.Node) error {
	seen := make(map[string]struct{}, len(nodes))
	for i, n := range nodes {
		if err := validate.Struct(n); err != nil {
			return errors.Wrapf(err, "node %d", i)
		}
		if _, ok := seen[n.ID]; ok {
			return errors.Wrapf(ErrDuplicateNodeID, "node %d id %q", i, n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	return nil
}

// NextNodeID returns one past the largest numeric node id.
func NextNodeID(nodes []models.Node) string {
	highest := 0
	for _, n := range nodes {
		if v, err := strconv.Atoi(n.ID); err == nil && v > highest {
			highest = v
		}
	}
	return strconv.Itoa(highest + 1)
}

// Location resolves the display time zone. Asia/Shanghai falls back to a
// fixed UTC+8 zone on hosts without tzdata.
func Location(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == DefaultTimezone {
		return time.FixedZone("CST", 8*3600), nil
	}
	return nil, errors.Wrapf(err, "load timezone %q", name)
}
