package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

type Strategy string

const (
	StrategyStatic  Strategy = "static"
	StrategyBrowser Strategy = "browser"
)

type Config struct {
	Server    ServerConfig
	Extractor ExtractorConfig
	Store     StoreConfig
	Artifacts ArtifactConfig
	Scheduler SchedulerConfig
	Log       LogConfig
	Site      *SiteConfig
	Sites     map[string]*SiteConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type ExtractorConfig struct {
	Strategy        Strategy
	BrowserDriver   string
	PoolSize        int
	Headless        bool
	ChromeBin       string
	StaticTimeout   time.Duration
	NavTimeout      time.Duration
	SettleDelay     time.Duration
	ProxyURL        string
	FetchRatePerSec float64
}

type StoreConfig struct {
	Driver      string
	DBPath      string
	DatabaseURL string
	FactTTL     time.Duration
}

type ArtifactConfig struct {
	Dir string
	S3  S3Config
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type SchedulerConfig struct {
	PruneCron string
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// SiteConfig is a selector profile for one listing site.
type SiteConfig struct {
	ID      string           `yaml:"id"`
	Name    string           `yaml:"name"`
	Static  StaticSelectors  `yaml:"static"`
	Browser BrowserSelectors `yaml:"browser"`
}

type StaticSelectors struct {
	Price   []string `yaml:"price"`
	Address []string `yaml:"address"`

	// TextScan is the element selector whose texts feed the keyword heuristics.
	TextScan string `yaml:"text_scan"`
}

type BrowserSelectors struct {
	Price     []string `yaml:"price"`
	Address   []string `yaml:"address"`
	Bedrooms  []string `yaml:"bedrooms"`
	Bathrooms []string `yaml:"bathrooms"`
	Sqft      []string `yaml:"sqft"`
	YearScan  string   `yaml:"year_scan"`
}

// DefaultSite is the built-in Zillow profile used when no YAML profile overrides it.
func DefaultSite() *SiteConfig {
	return &SiteConfig{
		ID:   "zillow",
		Name: "Zillow",
		Static: StaticSelectors{
			Price:    []string{`span[data-testid="price"]`, `h3.ds-price`, `span.ds-value`},
			Address:  []string{`h1[class*="address"]`, `h1.ds-address-container`},
			TextScan: "span",
		},
		Browser: BrowserSelectors{
			Price:   []string{`span[data-testid="price"]`, `h3.ds-price`, `span.ds-value`, `[class*="price"]`},
			Address: []string{`h1[data-testid="address"]`, `h1.ds-address-container`, `h1[class*="address"]`},
			Bedrooms: []string{
				`span[data-testid="bed-bath-item"]:first-child`,
				`span.ds-bed-bath-living-area-container span:first-child`,
			},
			Bathrooms: []string{
				`span[data-testid="bed-bath-item"]:nth-child(2)`,
				`span.ds-bed-bath-living-area-container span:nth-child(2)`,
			},
			Sqft: []string{
				`span[data-testid="bed-bath-beyond"]`,
				`span[data-testid="bed-bath-item"]:last-child`,
				`span.ds-bed-bath-living-area-container span:last-child`,
			},
			YearScan: "span, div, li",
		},
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "3000"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Extractor: ExtractorConfig{
			Strategy:        strategyFromEnv(),
			BrowserDriver:   getEnv("BROWSER_DRIVER", "playwright"),
			PoolSize:        getEnvInt("BROWSER_POOL_SIZE", 2),
			Headless:        getEnv("BROWSER_HEADLESS", "true") != "false",
			ChromeBin:       os.Getenv("CHROME_BIN"),
			StaticTimeout:   getEnvDuration("STATIC_TIMEOUT", 10*time.Second),
			NavTimeout:      getEnvDuration("NAV_TIMEOUT", 30*time.Second),
			SettleDelay:     getEnvDuration("SETTLE_DELAY", 2*time.Second),
			ProxyURL:        os.Getenv("PROXY_URL"),
			FetchRatePerSec: getEnvFloat("FETCH_RATE_PER_SEC", 2),
		},
		Store: StoreConfig{
			Driver:      getEnv("STORE_DRIVER", "sqlite"),
			DBPath:      getEnv("DB_PATH", "sourcer.db"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			FactTTL:     getEnvDuration("FACT_CACHE_TTL", 6*time.Hour),
		},
		Artifacts: ArtifactConfig{
			Dir: os.Getenv("ARTIFACT_DIR"),
			S3: S3Config{
				Bucket:          os.Getenv("S3_BUCKET"),
				Region:          getEnv("S3_REGION", "us-east-1"),
				Endpoint:        os.Getenv("S3_ENDPOINT"),
				AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			},
		},
		Scheduler: SchedulerConfig{
			PruneCron: getEnv("PRUNE_CRON", "@every 1h"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
			File:   getEnv("LOG_FILE", "sourcer.log"),
		},
		Sites: make(map[string]*SiteConfig),
	}

	if err := cfg.loadSiteConfigs(getEnv("SITES_DIR", "config/sites")); err != nil {
		return nil, err
	}

	siteID := getEnv("SITE", "zillow")
	if site, ok := cfg.Sites[siteID]; ok {
		cfg.Site = site
	} else if siteID == "zillow" {
		cfg.Site = DefaultSite()
	} else {
		return nil, eris.Errorf("config: unknown site profile %q", siteID)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at first use.
func (c *Config) Validate() error {
	switch c.Extractor.Strategy {
	case StrategyStatic, StrategyBrowser:
	default:
		return eris.Errorf("config: unknown extractor strategy %q", c.Extractor.Strategy)
	}
	switch c.Extractor.BrowserDriver {
	case "playwright", "chromedp":
	default:
		return eris.Errorf("config: unknown browser driver %q", c.Extractor.BrowserDriver)
	}
	switch c.Store.Driver {
	case "sqlite", "none":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: DATABASE_URL is required for the postgres store")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Extractor.PoolSize < 1 {
		c.Extractor.PoolSize = 1
	}
	return nil
}

func strategyFromEnv() Strategy {
	if v := os.Getenv("EXTRACTOR"); v != "" {
		return Strategy(strings.ToLower(v))
	}
	// USE_PUPPETEER is what existing deployments set.
	if os.Getenv("USE_PUPPETEER") == "true" || os.Getenv("USE_BROWSER") == "true" {
		return StrategyBrowser
	}
	return StrategyStatic
}

func (c *Config) loadSiteConfigs(configDir string) error {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrap(err, "config: read sites dir")
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "config: read %s", path)
		}

		site := DefaultSite()
		if err := yaml.Unmarshal(data, site); err != nil {
			return eris.Wrapf(err, "config: parse %s", path)
		}

		c.Sites[site.ID] = site
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
