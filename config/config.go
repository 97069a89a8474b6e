package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the document pipeline.
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Storage    StorageConfig    `mapstructure:"storage"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Vector     VectorConfig     `mapstructure:"vector"`
	Reranker   RerankerConfig   `mapstructure:"reranker"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Export     ExportConfig     `mapstructure:"export"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// StorageConfig groups the backing stores shared by every worker.
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns the host:port address for the Redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN assembles a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslMode)
}

// LLMConfig contains the generation/embedding model endpoint settings.
type LLMConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	GenerationModel string        `mapstructure:"generation_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.BaseURL) == "" {
		return fmt.Errorf("llm.base_url required")
	}
	if strings.TrimSpace(l.GenerationModel) == "" {
		return fmt.Errorf("llm.generation_model required")
	}
	if strings.TrimSpace(l.EmbeddingModel) == "" {
		return fmt.Errorf("llm.embedding_model required")
	}
	return nil
}

// VectorConfig contains the vector store endpoint settings.
type VectorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (v VectorConfig) Validate() error {
	if strings.TrimSpace(v.BaseURL) == "" {
		return fmt.Errorf("vector.base_url required")
	}
	return nil
}

// RerankerConfig controls the optional rerank pass during answering.
type RerankerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	Oversample int           `mapstructure:"oversample"`
	TopK       int           `mapstructure:"top_k"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (r RerankerConfig) Validate() error {
	if r.Enabled && strings.TrimSpace(r.BaseURL) == "" {
		return fmt.Errorf("reranker.base_url required when reranker is enabled")
	}
	return nil
}

// ChunkingConfig controls the ingestion text splitter.
type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// ExtractionConfig controls question extraction behaviour.
type ExtractionConfig struct {
	MaxSheetCells int `mapstructure:"max_sheet_cells"`
}

// ExportConfig controls where rendered export artifacts are written.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// WorkerConfig controls the per-stage poll loops.
type WorkerConfig struct {
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
}

// TelemetryConfig contains metrics/health server settings.
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && strings.TrimSpace(t.Address) == "" {
		return fmt.Errorf("telemetry.address required when telemetry is enabled")
	}
	return nil
}

// LoadConfig reads configuration from the given path, or from the default
// search locations when path is empty. Environment variables prefixed with
// RFPFLOW_ override file values.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.timeout", 5*time.Minute)
	viper.SetDefault("vector.timeout", time.Minute)
	viper.SetDefault("reranker.enabled", false)
	viper.SetDefault("reranker.oversample", 20)
	viper.SetDefault("reranker.top_k", 5)
	viper.SetDefault("reranker.timeout", 30*time.Second)
	viper.SetDefault("chunking.size", 1000)
	viper.SetDefault("chunking.overlap", 200)
	viper.SetDefault("extraction.max_sheet_cells", 100)
	viper.SetDefault("export.dir", "./exports")
	viper.SetDefault("worker.poll_timeout", time.Second)
	viper.SetDefault("worker.error_backoff", 5*time.Second)
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.address", ":9090")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("RFPFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Vector.Validate(); err != nil {
		panic(err)
	}
	if err := config.Reranker.Validate(); err != nil {
		panic(err)
	}
	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	return &config
}
