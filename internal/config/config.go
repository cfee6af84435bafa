package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Source   SourceConfig   `yaml:"source"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	HTTP     HTTPConfig     `yaml:"http"`
	LogLevel string         `yaml:"log_level"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PageTTL  time.Duration `yaml:"page_ttl"`
}

type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type SourceConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

type GeminiConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type CrawlConfig struct {
	Interval    time.Duration `yaml:"interval"`
	StartIndex  int64         `yaml:"start_index"`
	MaxAttempts int           `yaml:"max_attempts"`
	Workers     int           `yaml:"workers"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PageTTL == 0 {
		c.Redis.PageTTL = 30 * time.Second
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "news_crawler"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "articles"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "news_articles"
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = "https://www.aitimes.com/news/articleView.html?idxno="
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 15 * time.Second
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Gemini.Timeout == 0 {
		c.Gemini.Timeout = 60 * time.Second
	}
	if c.Crawl.Interval == 0 {
		c.Crawl.Interval = 30 * time.Minute
	}
	if c.Crawl.StartIndex == 0 {
		c.Crawl.StartIndex = 169400
	}
	if c.Crawl.MaxAttempts == 0 {
		c.Crawl.MaxAttempts = 3
	}
	if c.Crawl.Workers == 0 {
		c.Crawl.Workers = 5
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8000"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
