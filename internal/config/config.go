package config

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/dataload/internal/crs"
)

// MajorIonsURL is the USGS ScienceBase archive holding Major_Ions.csv.
const MajorIonsURL = "https://www.sciencebase.gov/catalog/file/get/58937228e4b0fa1e59b73361?f=__disk__5a%2Fae%2F1a%2F5aae1aa25f84b94737628e43ef82e34f6897a63b"

// Config holds the full application configuration.
type Config struct {
	Loader   LoaderConfig             `yaml:"loader" mapstructure:"loader"`
	Output   OutputConfig             `yaml:"output" mapstructure:"output"`
	Log      LogConfig                `yaml:"log" mapstructure:"log"`
	Datasets map[string]DatasetConfig `yaml:"datasets" mapstructure:"datasets"`
}

// LoaderConfig configures fetching and decoding.
type LoaderConfig struct {
	TargetCRS   string `yaml:"target_crs" mapstructure:"target_crs"`
	ScratchDir  string `yaml:"scratch_dir" mapstructure:"scratch_dir"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OutputConfig configures the preview written after a load.
type OutputConfig struct {
	HeadRows int    `yaml:"head_rows" mapstructure:"head_rows"`
	HeadPath string `yaml:"head_path" mapstructure:"head_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DatasetConfig is a named resource plus the filters applied after loading.
type DatasetConfig struct {
	URL       string         `yaml:"url" mapstructure:"url"`
	Zipped    bool           `yaml:"zipped" mapstructure:"zipped"`
	InnerPath string         `yaml:"inner_path" mapstructure:"inner_path"`
	Options   map[string]any `yaml:"options" mapstructure:"options"`
	Filters   []string       `yaml:"filters" mapstructure:"filters"`
	LatField  string         `yaml:"lat_field" mapstructure:"lat_field"`
	LongField string         `yaml:"long_field" mapstructure:"long_field"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DATALOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("loader.target_crs", "EPSG:2278")
	v.SetDefault("loader.scratch_dir", "")
	v.SetDefault("loader.user_agent", "")
	v.SetDefault("loader.timeout_secs", 0)
	v.SetDefault("output.head_rows", 5)
	v.SetDefault("output.head_path", "data_head.csv")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("datasets.major_ions.url", MajorIonsURL)
	v.SetDefault("datasets.major_ions.zipped", true)
	v.SetDefault("datasets.major_ions.inner_path", "Major_Ions.csv")
	v.SetDefault("datasets.major_ions.filters", []string{"TDS_mgL>=1000", "charge_balance_eq<0.1"})

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

	return &cfg, nil
}

// Validate checks the loader settings and every named dataset.
func (c *Config) Validate() error {
	var errs []string
	if _, err := crs.Parse(c.Loader.TargetCRS); err != nil {
		errs = append(errs, "loader.target_crs: "+err.Error())
	}
	if c.Loader.TimeoutSecs < 0 {
		errs = append(errs, "loader.timeout_secs must not be negative")
	}
	if c.Output.HeadRows < 0 {
		errs = append(errs, "output.head_rows must not be negative")
	}
	for _, name := range c.DatasetNames() {
		ds := c.Datasets[name]
		if ds.URL == "" {
			errs = append(errs, "datasets."+name+".url is required")
		}
		if ds.Zipped && ds.InnerPath == "" {
			errs = append(errs, "datasets."+name+".inner_path is required when zipped")
		}
		if (ds.LatField == "") != (ds.LongField == "") {
			errs = append(errs, "datasets."+name+": lat_field and long_field must be set together")
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DatasetNames returns the configured dataset names, sorted.
func (c *Config) DatasetNames() []string {
	names := make([]string, 0, len(c.Datasets))
	for n := range c.Datasets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
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
