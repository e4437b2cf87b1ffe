package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
)

// ErrConfiguration marks missing or invalid settings required for live publishing
var ErrConfiguration = errors.New("invalid configuration")

type SeenBackend = string

var (
	SeenSQLite   = SeenBackend("sqlite")
	SeenPostgres = SeenBackend("postgres")
	SeenMemory   = SeenBackend("memory")
)

const (
	baseCfgPath = "technews/config.toml"

	minPosts = 1
	maxPosts = 5
)

type Config struct {
	DataDirectory   string            `toml:"data_directory" env:"DATA_DIR"`     // seen.db and li_tokens.json live here
	OutputDirectory string            `toml:"output_directory" env:"OUTPUT_DIR"` // rendered posters
	SeenStore       SeenBackend       `toml:"seen_store" env:"SEEN_STORE"`
	PostgresDSN     string            `toml:"postgres_dsn" env:"SEEN_POSTGRES_DSN"`
	DryRun          bool              `toml:"dry_run" env:"DRY_RUN"`
	MaxPosts        int               `toml:"max_posts" env:"MAX_POSTS"`
	Timezone        string            `toml:"timezone" env:"TIMEZONE"`
	MetricsTextfile string            `toml:"metrics_textfile" env:"METRICS_TEXTFILE"` // empty disables export
	SummaryAgent    bool              `toml:"summary_agent" env:"SUMMARY_AGENT"`       // use Gemini for bullets when credentials allow
	News            NewsConfig        `toml:"news"`
	Poster          PosterConfig      `toml:"poster"`
	Caption         CaptionConfig     `toml:"caption"`
	LinkedIn        LinkedInConfig    `toml:"linkedin"`
	Filters         map[string]Filter `toml:"filters"` // Named filters referenced by news.filters
}

type NewsConfig struct {
	RSSFeeds              []string `toml:"rss_feeds" env:"RSS_FEEDS" env-separator:","`
	MaxItemsPerFeed       int      `toml:"max_items_per_feed" env:"MAX_ITEMS_PER_FEED"`
	KeywordEndpoint       string   `toml:"keyword_endpoint" env:"NEWS_API_ENDPOINT"`
	KeywordMaxItems       int      `toml:"keyword_max_items" env:"NEWS_API_MAX_ITEMS"`
	LookbackHours         int      `toml:"lookback_hours" env:"LOOKBACK_HOURS"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds" env:"FEED_TIMEOUT_SECONDS"`
	TelegramChannels      []string `toml:"telegram_channels" env:"TELEGRAM_CHANNELS" env-separator:","`
	FilterNames           []string `toml:"filters"` // Names of filters to apply (pipeline)
}

type PosterConfig struct {
	Format         string `toml:"format" env:"POSTER_FORMAT"` // square | landscape
	BrandName      string `toml:"brand_name" env:"BRAND_NAME"`
	LogoPath       string `toml:"logo_path" env:"LOGO_PATH"`
	FooterText     string `toml:"footer_text" env:"FOOTER_TEXT"`
	MaxTitleLength int    `toml:"max_title_length" env:"MAX_TITLE_LENGTH"`
	MaxBullets     int    `toml:"max_bullets" env:"MAX_BULLETS"`
}

type CaptionConfig struct {
	Hashtags      string `toml:"hashtags" env:"HASHTAGS"`
	Visibility    string `toml:"visibility" env:"POST_VISIBILITY"`
	DefaultSource string `toml:"default_source"`
}

type LinkedInConfig struct {
	APIBase              string  `toml:"api_base" env:"LINKEDIN_API_BASE"`
	OAuthURL             string  `toml:"oauth_url" env:"LINKEDIN_OAUTH_URL"`
	APIVersion           string  `toml:"api_version" env:"LINKEDIN_VERSION"` // YYYYMM
	MaxRetries           int     `toml:"max_retries" env:"LINKEDIN_MAX_RETRIES"`
	TimeoutSeconds       int     `toml:"timeout_seconds"`
	UploadTimeoutSeconds int     `toml:"upload_timeout_seconds"`
	RequestsPerSecond    float64 `toml:"requests_per_second"` // 0 = unlimited
}

// Filter defines rules for filtering news items by title
type Filter struct {
	MinLength       int      `toml:"min_length"`       // Minimum character count (0 = no limit)
	MinWords        int      `toml:"min_words"`        // Minimum word count (0 = no limit)
	ExcludePatterns []string `toml:"exclude_patterns"` // Regex patterns to exclude
	IncludePatterns []string `toml:"include_patterns"` // At least one must match when set
	ExcludeSources  []string `toml:"exclude_sources"`  // Source names to drop, case-insensitive
}

// Read decodes the TOML config at path over Default and applies environment overrides.
// A missing file is reported with os.ErrNotExist while still returning the defaults.
func Read(path string) (Config, error) {
	conf := Default()
	dat, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}
	_, err = toml.Decode(string(dat), &conf)
	if err != nil {
		return conf, fmt.Errorf("failed to decode config at %s with %w", path, err)
	}
	if err := ApplyEnv(&conf); err != nil {
		return conf, err
	}
	return conf, nil
}

// ApplyEnv overrides fields that have their environment variable set and normalizes the result
func ApplyEnv(conf *Config) error {
	if err := cleanenv.ReadEnv(conf); err != nil {
		return fmt.Errorf("failed to read environment overrides with %w", err)
	}
	conf.normalize()
	return nil
}

func (c *Config) normalize() {
	if c.MaxPosts < minPosts {
		c.MaxPosts = minPosts
	}
	if c.MaxPosts > maxPosts {
		c.MaxPosts = maxPosts
	}
	c.SeenStore = strings.ToLower(strings.TrimSpace(c.SeenStore))
	if c.SeenStore == "" {
		c.SeenStore = SeenSQLite
	}
	c.Poster.Format = strings.ToLower(strings.TrimSpace(c.Poster.Format))
}

func Write(cfgPath string, cfg Config) error {
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config with %w", err)
	}
	basePath := path.Dir(cfgPath)
	err = os.MkdirAll(basePath, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create base config directory at '%s' with %w", basePath, err)
	}
	err = os.WriteFile(cfgPath, blob, 0644)
	if err != nil {
		return fmt.Errorf("failed to write into config file at '%s' with %w", cfgPath, err)
	}
	slog.Info("config written", "at", cfgPath)
	return nil
}

func Default() Config {
	var home = os.Getenv("HOME")
	var dataDir = path.Join(home, ".local/share/technews")
	return Config{
		DataDirectory:   dataDir,
		OutputDirectory: path.Join(home, "technews", "out"),
		SeenStore:       SeenSQLite,
		DryRun:          true,
		MaxPosts:        2,
		Timezone:        "Asia/Kolkata",
		News: NewsConfig{
			RSSFeeds: []string{
				"https://www.theverge.com/rss/index.xml",
				"http://feeds.arstechnica.com/arstechnica/index/",
				"https://www.wired.com/feed/rss",
			},
			MaxItemsPerFeed:       15,
			KeywordEndpoint:       "https://newsapi.org/v2/top-headlines",
			KeywordMaxItems:       10,
			LookbackHours:         24,
			RequestTimeoutSeconds: 20,
		},
		Poster: PosterConfig{
			Format:         "square",
			BrandName:      "Tech Daily",
			LogoPath:       "assets/logo.png",
			FooterText:     "auto-generated poster - latest tech",
			MaxTitleLength: 140,
			MaxBullets:     4,
		},
		Caption: CaptionConfig{
			Hashtags:      "#AI #Cloud #Security #Dev #TechNews",
			Visibility:    "PUBLIC",
			DefaultSource: "Tech News",
		},
		LinkedIn: LinkedInConfig{
			APIBase:              "https://api.linkedin.com",
			OAuthURL:             "https://www.linkedin.com/oauth/v2/accessToken",
			APIVersion:           "202506",
			MaxRetries:           3,
			TimeoutSeconds:       30,
			UploadTimeoutSeconds: 60,
		},
	}
}

// SeenDBPath is the sqlite seen store location inside the data directory
func (c Config) SeenDBPath() string {
	return path.Join(c.DataDirectory, "seen.db")
}

// TokenCachePath is the persisted LinkedIn access token location inside the data directory
func (c Config) TokenCachePath() string {
	return path.Join(c.DataDirectory, "li_tokens.json")
}

func DefaultPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return path.Join(xdgHome, baseCfgPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return path.Join(home, ".config", baseCfgPath)
	}

	panic("unclear where to search for the config fie")
}

// ValidateLive checks that everything live publishing needs is present.
// Dry runs never fail validation.
func ValidateLive(cfg Config, creds Credentials) error {
	if cfg.DryRun {
		return nil
	}
	li := creds.LinkedIn
	var missing []string
	if li.AuthorURN == "" {
		missing = append(missing, "LINKEDIN_AUTHOR_URN")
	}
	if li.AccessToken == "" && li.RefreshToken == "" {
		missing = append(missing, "LINKEDIN_ACCESS_TOKEN or LINKEDIN_REFRESH_TOKEN")
	}
	if li.ClientID == "" {
		missing = append(missing, "LINKEDIN_CLIENT_ID")
	}
	if li.ClientSecret == "" {
		missing = append(missing, "LINKEDIN_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: dry run is off but required LinkedIn settings are missing: %s",
			ErrConfiguration, strings.Join(missing, ", "))
	}
	if !strings.HasPrefix(li.AuthorURN, "urn:li:person:") && !strings.HasPrefix(li.AuthorURN, "urn:li:organization:") {
		return fmt.Errorf("%w: LINKEDIN_AUTHOR_URN must start with 'urn:li:person:' or 'urn:li:organization:'", ErrConfiguration)
	}
	return nil
}
