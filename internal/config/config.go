// Package config loads application configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Overlay  OverlayConfig  `yaml:"overlay" mapstructure:"overlay"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the PostGIS backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

// IngestConfig configures dataset ingestion.
type IngestConfig struct {
	RasterDir     string `yaml:"raster_dir" mapstructure:"raster_dir"`
	ShapefileDir  string `yaml:"shapefile_dir" mapstructure:"shapefile_dir"`
	SRID          int    `yaml:"srid" mapstructure:"srid"`
	Raster2pgsql  string `yaml:"raster2pgsql_path" mapstructure:"raster2pgsql_path"`
	Psql          string `yaml:"psql_path" mapstructure:"psql_path"`
	Ogr2ogr       string `yaml:"ogr2ogr_path" mapstructure:"ogr2ogr_path"`
	NativeShapes  bool   `yaml:"native_shapefile_load" mapstructure:"native_shapefile_load"`
	LoadsPerMin   int    `yaml:"loads_per_minute" mapstructure:"loads_per_minute"`
	CopyBatchSize int    `yaml:"copy_batch_size" mapstructure:"copy_batch_size"`
}

// AnalysisConfig configures classification analytics.
type AnalysisConfig struct {
	MetricSRID   int   `yaml:"metric_srid" mapstructure:"metric_srid"`
	VegCodes     []int `yaml:"veg_codes" mapstructure:"veg_codes"`
	BuiltupCodes []int `yaml:"builtup_codes" mapstructure:"builtup_codes"`
}

// OverlayConfig configures polygon overlay materialization and export.
type OverlayConfig struct {
	DefaultTolerance float64 `yaml:"default_tolerance" mapstructure:"default_tolerance"`
	ExportTolerance  float64 `yaml:"export_tolerance" mapstructure:"export_tolerance"`
	ExportDir        string  `yaml:"export_dir" mapstructure:"export_dir"`
	AllYearsTable    string  `yaml:"all_years_table" mapstructure:"all_years_table"`
}

// ServerConfig configures the HTTP query API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestsPerSec float64  `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	RequestBurst   int      `yaml:"request_burst" mapstructure:"request_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LULC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.schema", "public")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.requests_per_sec", 20.0)
	v.SetDefault("server.request_burst", 40)
	v.SetDefault("ingest.raster_dir", "raster")
	v.SetDefault("ingest.shapefile_dir", "shapefiles")
	v.SetDefault("ingest.srid", 4326)
	v.SetDefault("ingest.raster2pgsql_path", "raster2pgsql")
	v.SetDefault("ingest.psql_path", "psql")
	v.SetDefault("ingest.ogr2ogr_path", "ogr2ogr")
	v.SetDefault("ingest.native_shapefile_load", false)
	v.SetDefault("ingest.loads_per_minute", 30)
	v.SetDefault("ingest.copy_batch_size", 50000)
	v.SetDefault("analysis.metric_srid", 32643)
	v.SetDefault("analysis.veg_codes", []int{1, 2, 3, 4, 5})
	v.SetDefault("analysis.builtup_codes", []int{6, 7, 8, 9, 10, 11})
	v.SetDefault("overlay.default_tolerance", 0.0001)
	v.SetDefault("overlay.export_tolerance", 0.001)
	v.SetDefault("overlay.export_dir", "geojson_exports")
	v.SetDefault("overlay.all_years_table", "lulc_classes_all_years")

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
