package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"

	"github.com/sells-group/places-cli/internal/model"
)

// MaxRadius is the largest search radius the places API accepts.
const MaxRadius = 50000

// Config holds the full application configuration.
type Config struct {
	Places PlacesConfig `yaml:"places" mapstructure:"places"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// PlacesConfig describes the collection sweep and the Google Maps credentials.
type PlacesConfig struct {
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Location   string `yaml:"location" mapstructure:"location"`
	Radius     int    `yaml:"radius" mapstructure:"radius"`
	Types      string `yaml:"types" mapstructure:"types"`
	Language   string `yaml:"language" mapstructure:"language"`
	Iterations int    `yaml:"iterations" mapstructure:"iterations"`
	DriveTime  bool   `yaml:"drive_time" mapstructure:"drive_time"`

	// LanguageFromLocale is set when Language came from the shell's LANG
	// rather than PLACES_LANG, the config file or the default.
	LanguageFromLocale bool `yaml:"-" mapstructure:"-"`
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	DBFile string `yaml:"db_file" mapstructure:"db_file"`
}

// ServerConfig configures the viewer server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Unprefixed variable names understood for compatibility with existing
// .env files. PLACES_-prefixed names are always accepted as well.
var legacyEnv = map[string][]string{
	"places.api_key":    {"API_KEY", "GMAPS_API_KEY"},
	"places.location":   {"LOCATION"},
	"places.radius":     {"RADIUS"},
	"places.types":      {"TYPE"},
	"places.language":   {"PLACES_LANG", "LANG"},
	"places.iterations": {"ITERATIONS"},
	"places.drive_time": {"DRIVE_TIME"},
	"store.db_file":     {"DB_FILE"},
	"server.port":       {"PORT"},
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// Variables already set in the environment take precedence over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLACES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		prefixed := "PLACES_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api")
	v.SetDefault("places.location", "35.681236,139.767125")
	v.SetDefault("places.radius", 500)
	v.SetDefault("places.types", "restaurant")
	v.SetDefault("places.language", "ja")
	v.SetDefault("places.iterations", 1)
	v.SetDefault("places.drive_time", false)
	v.SetDefault("store.db_file", "restaurants.db")
	v.SetDefault("server.port", 5000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Places.LanguageFromLocale = languageFromLocale(cfg.Places.Language)

	return &cfg, nil
}

// languageFromLocale reports whether lang was resolved from LANG, which most
// shells set to the user's locale.
func languageFromLocale(lang string) bool {
	for _, name := range []string{"PLACES_PLACES_LANGUAGE", "PLACES_LANG"} {
		if os.Getenv(name) != "" {
			return false
		}
	}
	locale := os.Getenv("LANG")
	return locale != "" && locale == lang
}

// Validate checks the settings a command needs. mode is the command name:
// "collect" requires an API key and a well-formed sweep, "serve" and
// "heatmap" need a parsable base location and "store" only a database.
func (c *Config) Validate(mode string) error {
	if strings.TrimSpace(c.Store.DBFile) == "" {
		return eris.New("config: store.db_file (DB_FILE) is required")
	}

	switch mode {
	case "collect":
		if strings.TrimSpace(c.Places.APIKey) == "" {
			return eris.New("config: API key is required (set API_KEY or GMAPS_API_KEY)")
		}
		if _, err := ParseLocation(c.Places.Location); err != nil {
			return err
		}
		if c.Places.Radius < 1 || c.Places.Radius > MaxRadius {
			return eris.Errorf("config: radius %d out of range 1..%d", c.Places.Radius, MaxRadius)
		}
		if c.Places.Iterations < 0 {
			return eris.Errorf("config: iterations must be >= 0, got %d", c.Places.Iterations)
		}
		if len(c.Places.Categories()) == 0 {
			return eris.New("config: at least one place type is required")
		}
		if _, err := NormalizeLanguage(c.Places.Language); err != nil {
			return err
		}
	case "serve", "heatmap":
		if _, err := ParseLocation(c.Places.Location); err != nil {
			return err
		}
		if mode == "serve" && (c.Server.Port < 1 || c.Server.Port > 65535) {
			return eris.Errorf("config: server port %d out of range", c.Server.Port)
		}
	case "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	return nil
}

// Base returns the parsed base location.
func (p PlacesConfig) Base() (model.LatLng, error) {
	return ParseLocation(p.Location)
}

// Categories returns the configured place types.
func (p PlacesConfig) Categories() []string {
	return ParseCategories(p.Types)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	if out.Places.APIKey != "" {
		out.Places.APIKey = "***"
	}
	return out
}

// ParseLocation parses a "lat,lng" pair.
func ParseLocation(s string) (model.LatLng, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.LatLng{}, eris.Errorf("config: location %q must be \"lat,lng\"", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.LatLng{}, eris.Wrapf(err, "config: parse latitude %q", parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.LatLng{}, eris.Wrapf(err, "config: parse longitude %q", parts[1])
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return model.LatLng{}, eris.Errorf("config: location %q out of range", s)
	}
	return model.LatLng{Lat: lat, Lng: lng}, nil
}

// ParseCategories splits a comma or semicolon separated list, dropping blanks
// and repeats.
func ParseCategories(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})

	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// NormalizeLanguage converts a language tag or shell locale ("ja_JP.UTF-8")
// into the BCP 47 form the API expects ("ja-JP"). An empty value means the
// API default.
func NormalizeLanguage(s string) (string, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "", nil
	}
	s = strings.ReplaceAll(s, "_", "-")
	if s == "C" || s == "POSIX" {
		return "", nil
	}

	tag, err := language.Parse(s)
	if err != nil {
		return "", eris.Wrapf(err, "config: invalid language %q", s)
	}
	return tag.String(), nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
