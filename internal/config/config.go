package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppPort string

	SourceList   string
	CachePath    string
	MetaPath     string
	MaxHeadlines int

	CronSpec     string
	RunOnStart   bool
	FetchTimeout time.Duration
	RateLimit    time.Duration
	UserAgent    string

	// 为空时不启用
	RedisAddr   string
	PostgresDSN string
}

// fileConfig 是 CONFIG_FILE 指向的 YAML 文件结构，其中的值作为环境变量的默认值
type fileConfig struct {
	AppPort      string `yaml:"app_port"`
	SourceList   string `yaml:"source_list"`
	CachePath    string `yaml:"headline_cache"`
	MetaPath     string `yaml:"fetch_meta"`
	MaxHeadlines int    `yaml:"max_headlines"`
	CronSpec     string `yaml:"cron_spec"`
	RunOnStart   *bool  `yaml:"run_on_start"`
	FetchTimeout string `yaml:"fetch_timeout"`
	RateLimit    string `yaml:"rate_limit"`
	UserAgent    string `yaml:"user_agent"`
	RedisAddr    string `yaml:"redis_addr"`
	PostgresDSN  string `yaml:"postgres_dsn"`
}

func Load() *Config {
	fc := loadFile(os.Getenv("CONFIG_FILE"))

	cfg := &Config{
		AppPort:      getEnv("APP_PORT", or(fc.AppPort, "9000")),
		SourceList:   getEnv("SOURCE_LIST", or(fc.SourceList, "sources.txt")),
		CachePath:    getEnv("HEADLINE_CACHE", or(fc.CachePath, "data/headlines.json")),
		MetaPath:     getEnv("FETCH_META", or(fc.MetaPath, "data/fetch-meta.json")),
		MaxHeadlines: getEnvAsInt("MAX_HEADLINES", orInt(fc.MaxHeadlines, 200)),
		CronSpec:     getEnv("CRON_SPEC", or(fc.CronSpec, "*/10 * * * *")),
		RunOnStart:   getEnvAsBool("RUN_ON_START", fc.RunOnStart == nil || *fc.RunOnStart),
		FetchTimeout: getEnvAsDuration("FETCH_TIMEOUT", orDuration(fc.FetchTimeout, 15*time.Second)),
		RateLimit:    getEnvAsDuration("RATE_LIMIT", orDuration(fc.RateLimit, 5*time.Minute)),
		UserAgent:    getEnv("USER_AGENT", or(fc.UserAgent, "HeadlineHubBot/1.0")),
		RedisAddr:    getEnv("REDIS_ADDR", fc.RedisAddr),
		PostgresDSN:  getEnv("POSTGRES_DSN", fc.PostgresDSN),
	}

	log.Printf("config loaded: port=%s list=%s cron=%s max=%d", cfg.AppPort, cfg.SourceList, cfg.CronSpec, cfg.MaxHeadlines)
	return cfg
}

// loadFile 读取可选的 YAML 配置；读取或解析失败只告警，回退到内置默认值
func loadFile(path string) fileConfig {
	var fc fileConfig
	if path == "" {
		return fc
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("warn: read config file %s: %v", path, err)
		return fc
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		log.Printf("warn: parse config file %s: %v", path, err)
		return fileConfig{}
	}
	return fc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDuration(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return def
}
