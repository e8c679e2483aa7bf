package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the analysis service
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Normalize applies defaults for unset server values.
func (s ServerConfig) Normalize() ServerConfig {
	if strings.TrimSpace(s.Address) == "" {
		s.Address = ":8000"
	}
	if len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"http://localhost:3000"}
	}
	return s
}

// LLMConfig contains model gateway settings. Either APIKey (plain bearer) or
// the OAuth2 trio (TokenURL, ClientID, ClientSecret) must be set.
type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	TokenURL       string        `mapstructure:"token_url"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	ChatModel      string        `mapstructure:"chat_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// Normalize applies defaults for unset LLM values.
func (l LLMConfig) Normalize() LLMConfig {
	if l.BaseURL == "" {
		l.BaseURL = "https://api.openai.com/v1"
	}
	if l.ChatModel == "" {
		l.ChatModel = "gpt-4o"
	}
	if l.EmbeddingModel == "" {
		l.EmbeddingModel = "text-embedding-ada-002"
	}
	if l.Temperature == 0 {
		l.Temperature = 0.3
	}
	if l.MaxTokens == 0 {
		l.MaxTokens = 4000
	}
	if l.Timeout == 0 {
		l.Timeout = 120 * time.Second
	}
	if l.MaxRetries == 0 {
		l.MaxRetries = 3
	}
	return l
}

func (l LLMConfig) Validate() error {
	if l.APIKey == "" && l.TokenURL == "" {
		return fmt.Errorf("llm: either api_key or token_url must be configured")
	}
	if l.TokenURL != "" && (l.ClientID == "" || l.ClientSecret == "") {
		return fmt.Errorf("llm: token_url requires client_id and client_secret")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a Postgres connection string from URL or parts.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains Redis connection settings (optional cache backend)
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// UploadsConfig contains file upload settings
type UploadsConfig struct {
	Dir               string   `mapstructure:"dir"`
	MaxSize           int64    `mapstructure:"max_size"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// Normalize applies defaults for unset upload values.
func (u UploadsConfig) Normalize() UploadsConfig {
	if u.Dir == "" {
		u.Dir = "./uploads"
	}
	if u.MaxSize == 0 {
		u.MaxSize = 50 * 1024 * 1024
	}
	if len(u.AllowedExtensions) == 0 {
		u.AllowedExtensions = []string{"txt", "pdf", "docx", "csv", "ppr-rx", "ppr-vx"}
	}
	return u
}

// AnalysisConfig contains query orchestrator settings
type AnalysisConfig struct {
	MaxIterations       int           `mapstructure:"max_iterations"`
	ChunkSize           int           `mapstructure:"chunk_size"`
	ChunkOverlap        int           `mapstructure:"chunk_overlap"`
	TopK                int           `mapstructure:"top_k"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	Interpreter         string        `mapstructure:"interpreter"`
	ScriptTimeout       time.Duration `mapstructure:"script_timeout"`
	ScratchDir          string        `mapstructure:"scratch_dir"`
}

// Normalize applies the defaults the system settled on.
func (a AnalysisConfig) Normalize() AnalysisConfig {
	if a.MaxIterations <= 0 {
		a.MaxIterations = 3
	}
	if a.ChunkSize <= 0 {
		a.ChunkSize = 300
	}
	if a.ChunkOverlap < 0 {
		a.ChunkOverlap = 0
	}
	if a.TopK <= 0 {
		a.TopK = 25
	}
	if a.SimilarityThreshold == 0 {
		a.SimilarityThreshold = 0.05
	}
	if a.Interpreter == "" {
		a.Interpreter = "python3"
	}
	if a.ScriptTimeout <= 0 {
		a.ScriptTimeout = 30 * time.Second
	}
	if a.ScratchDir == "" {
		a.ScratchDir = os.TempDir()
	}
	return a
}

// CacheConfig controls the embeddings cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"` // disk or redis
	Dir     string `mapstructure:"dir"`
}

// Normalize applies defaults for unset cache values.
func (c CacheConfig) Normalize() CacheConfig {
	if c.Backend == "" {
		c.Backend = "disk"
	}
	if c.Dir == "" {
		c.Dir = "./embeddings_cache"
	}
	return c
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "disk", "redis":
		return nil
	default:
		return fmt.Errorf("cache.backend must be disk or redis, got %q", c.Backend)
	}
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

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

	viper.SetEnvPrefix("ELEMENTS")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Server = config.Server.Normalize()
	config.LLM = config.LLM.Normalize()
	config.Uploads = config.Uploads.Normalize()
	config.Analysis = config.Analysis.Normalize()
	config.Cache = config.Cache.Normalize()

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Cache.Validate(); err != nil {
		panic(err)
	}
	return &config
}
