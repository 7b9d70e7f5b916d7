// Load envs from .env
// Load YAML config
// Apply env overrides and defaults
// Validate config

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Config struct {
	//Interest filters applied to companies that do not set their own
	Keywords  []string `yaml:"keywords"`
	Locations []string `yaml:"locations"`

	Companies []Company       `yaml:"companies"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Replay    ReplayConfig    `yaml:"replay"`
	Storage   StorageConfig   `yaml:"storage"`
	Notifier  NotifierConfig  `yaml:"notifier"`
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
	Run       RunConfig       `yaml:"run"`
}

// Company describes one career page to watch.
type Company struct {
	Name      string     `yaml:"name"`
	ID        string     `yaml:"id"`
	URL       string     `yaml:"url"`
	Keywords  []string   `yaml:"keywords"`
	Locations []string   `yaml:"locations"`
	UseAPI    *bool      `yaml:"use_api"`
	Selectors *Selectors `yaml:"selectors"`
}

// Selectors are optional per-company overrides for the HTML extractor.
type Selectors struct {
	Container []string `yaml:"container"`
	Title     []string `yaml:"title"`
	Location  []string `yaml:"location"`
	Link      []string `yaml:"link"`
}

type DiscoveryConfig struct {
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	WaitUntil         string        `yaml:"wait_until"` // networkidle, load, domcontentloaded
	SettleDelay       time.Duration `yaml:"settle_delay"`
	ScrollSteps       int           `yaml:"scroll_steps"`
	SearchTerm        string        `yaml:"search_term"`
	ClickSelectors    []string      `yaml:"click_selectors"`
	Headless          *bool         `yaml:"headless"`
	UserAgent         string        `yaml:"user_agent"`
	ScreenshotDir     string        `yaml:"screenshot_dir"`
	MinScore          int           `yaml:"min_score"`
	MinListingSize    int           `yaml:"min_listing_size"`
}

type ReplayConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxPages   int           `yaml:"max_pages"`
	MaxResults int           `yaml:"max_results"`
	UserAgent  string        `yaml:"user_agent"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"` // file, redis, postgres, memory
	Dir         string `yaml:"dir"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
	DatabaseURL string `yaml:"database_url"`
}

type NotifierConfig struct {
	Type     string         `yaml:"type"` // telegram, email, log
	Telegram TelegramConfig `yaml:"telegram"`
	Email    EmailConfig    `yaml:"email"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type ServerConfig struct {
	Port     string `yaml:"port"`
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 6h"; empty disables
}

type RunConfig struct {
	CompanyDelay time.Duration `yaml:"company_delay"`
	ArchiveDir   string        `yaml:"archive_dir"`
}

// Load reads .env, the YAML file at path, env overrides and defaults, then validates.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document without touching the environment.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Notifier.Telegram.Token = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		c.Notifier.Telegram.ChatID = id
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		c.Notifier.Email.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.Notifier.Email.Password = v
	}
	if v := os.Getenv("EMAIL_RECIPIENT"); v != "" {
		c.Notifier.Email.To = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DatabaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	for i := range c.Companies {
		co := &c.Companies[i]
		co.Name = strings.TrimSpace(co.Name)
		if co.ID == "" {
			co.ID = Slugify(co.Name)
		}
	}

	d := &c.Discovery
	if d.NavigationTimeout == 0 {
		d.NavigationTimeout = 45 * time.Second
	}
	if d.WaitUntil == "" {
		d.WaitUntil = "networkidle"
	}
	if d.SettleDelay == 0 {
		d.SettleDelay = 3 * time.Second
	}
	if d.ScrollSteps == 0 {
		d.ScrollSteps = 3
	}
	if d.ClickSelectors == nil {
		d.ClickSelectors = []string{
			`button:has-text("Search")`,
			`button:has-text("Filter")`,
			`button:has-text("Apply")`,
		}
	}
	if d.Headless == nil {
		headless := true
		d.Headless = &headless
	}
	if d.UserAgent == "" {
		d.UserAgent = defaultUserAgent
	}

	r := &c.Replay
	if r.Timeout == 0 {
		r.Timeout = 30 * time.Second
	}
	if r.MaxPages == 0 {
		r.MaxPages = 20
	}
	if r.MaxResults == 0 {
		r.MaxResults = 100
	}
	if r.UserAgent == "" {
		r.UserAgent = d.UserAgent
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data"
	}

	if c.Notifier.Type == "" {
		c.Notifier.Type = "log"
	}
	if c.Notifier.Email.Host == "" {
		c.Notifier.Email.Host = "smtp.gmail.com"
	}
	if c.Notifier.Email.Port == 0 {
		c.Notifier.Email.Port = 587
	}
	if c.Notifier.Email.From == "" {
		c.Notifier.Email.From = c.Notifier.Email.Username
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Run.CompanyDelay == 0 {
		c.Run.CompanyDelay = 2 * time.Second
	}
	if c.Run.ArchiveDir == "" {
		c.Run.ArchiveDir = "logs"
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Companies) == 0 {
		errs = append(errs, errors.New("at least one company is required"))
	}
	seen := make(map[string]bool)
	for i, co := range c.Companies {
		if co.Name == "" {
			errs = append(errs, fmt.Errorf("companies[%d]: name is required", i))
		}
		if co.ID == "" {
			errs = append(errs, fmt.Errorf("companies[%d]: id could not be derived from name", i))
		} else if seen[co.ID] {
			errs = append(errs, fmt.Errorf("companies[%d]: duplicate id %q", i, co.ID))
		}
		seen[co.ID] = true
		if u, err := url.Parse(co.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("companies[%d]: url %q must be an absolute http(s) url", i, co.URL))
		}
	}

	switch c.Discovery.WaitUntil {
	case "networkidle", "load", "domcontentloaded":
	default:
		errs = append(errs, fmt.Errorf("discovery.wait_until %q is not one of networkidle, load, domcontentloaded", c.Discovery.WaitUntil))
	}

	switch c.Storage.Backend {
	case "file", "memory":
	case "redis":
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("storage.redis_url (or REDIS_URL) is required for the redis backend"))
		}
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("storage.database_url (or DATABASE_URL) is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.Notifier.Type {
	case "log":
	case "telegram":
		if c.Notifier.Telegram.Token == "" {
			errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
		}
		if c.Notifier.Telegram.ChatID == 0 {
			errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required"))
		}
	case "email":
		if c.Notifier.Email.Username == "" || c.Notifier.Email.Password == "" {
			errs = append(errs, errors.New("SMTP_USERNAME and SMTP_PASSWORD are required"))
		}
		if c.Notifier.Email.To == "" {
			errs = append(errs, errors.New("EMAIL_RECIPIENT is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notifier type %q", c.Notifier.Type))
	}

	return errors.Join(errs...)
}

// KeywordsFor returns the company's keywords or the global ones.
func (c *Config) KeywordsFor(co Company) []string {
	if len(co.Keywords) > 0 {
		return co.Keywords
	}
	return c.Keywords
}

// LocationsFor returns the company's locations or the global ones.
func (c *Config) LocationsFor(co Company) []string {
	if len(co.Locations) > 0 {
		return co.Locations
	}
	return c.Locations
}

// APIEnabled reports whether discovery/replay should be attempted (default true).
func (co Company) APIEnabled() bool {
	return co.UseAPI == nil || *co.UseAPI
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify: "Media Markt Saturn" -> "media-markt-saturn"
func Slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
