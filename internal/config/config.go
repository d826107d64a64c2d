// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"feastq/internal/constants"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	AppEnv string `yaml:"env"`
	Port   string `yaml:"port"`

	DatabaseURL string `yaml:"database_url"`
	DBHost      string `yaml:"-"`
	DBPort      string `yaml:"-"`
	DBUser      string `yaml:"-"`
	DBPassword  string `yaml:"-"`
	DBName      string `yaml:"-"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	JWTSecret      string   `yaml:"jwt_secret"`
	PublicBaseURL  string   `yaml:"public_base_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// TrustedProxies - IP или CIDR прокси, чьим X-Forwarded-For можно верить.
	TrustedProxies []string `yaml:"trusted_proxies"`

	ReferralRewardAmount int64         `yaml:"referral_reward_amount"`
	ReferralRateLimit    int           `yaml:"referral_rate_limit"`
	ReferralRateWindow   time.Duration `yaml:"referral_rate_window"`

	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// defaultConfig возвращает значения по умолчанию.
func defaultConfig() *Config {
	return &Config{
		AppEnv:               "prod",
		Port:                 "8080",
		PublicBaseURL:        "http://localhost:8080",
		AllowedOrigins:       []string{"https://*", "http://*"},
		ReferralRewardAmount: constants.DEFAULT_REFERRAL_REWARD_AMOUNT,
		ReferralRateLimit:    constants.DEFAULT_REFERRAL_RATE_LIMIT,
		ReferralRateWindow:   constants.DEFAULT_REFERRAL_RATE_WINDOW,
		LogLevel:             "info",
	}
}

// LoadConfig загружает конфигурацию: значения по умолчанию, затем YAML-файл
// из CONFIG_FILE (если задан), затем переменные окружения.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if cfg.ReferralRewardAmount <= 0 {
		return nil, fmt.Errorf("referral_reward_amount должен быть положительным, получено %d", cfg.ReferralRewardAmount)
	}

	if cfg.JWTSecret == "" {
		log.Println("Предупреждение: JWT_SECRET не установлен. Аутентифицированные маршруты будут отклонять все запросы.")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Предупреждение: DATABASE_URL не установлен, используется хранилище в памяти.")
	} else if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}
	if cfg.RedisAddr == "" {
		log.Println("Предупреждение: REDIS_ADDR не установлен, лимиты запросов считаются в памяти процесса.")
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("ошибка разбора файла конфигурации %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.AppEnv, "ENV")
	setString(&c.Port, "PORT")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&c.LogFile, "LOG_FILE")
	setString(&c.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		c.TrustedProxies = splitList(v)
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Printf("Предупреждение: некорректное значение REDIS_DB ('%s'), используется %d.", v, c.RedisDB)
		} else {
			c.RedisDB = n
		}
	}

	if v := os.Getenv("REFERRAL_REWARD_AMOUNT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			log.Printf("Предупреждение: некорректное значение REFERRAL_REWARD_AMOUNT ('%s'), используется %d.", v, c.ReferralRewardAmount)
		} else {
			c.ReferralRewardAmount = n
		}
	}

	if v := os.Getenv("REFERRAL_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Printf("Предупреждение: некорректное значение REFERRAL_RATE_LIMIT ('%s'), используется %d.", v, c.ReferralRateLimit)
		} else {
			c.ReferralRateLimit = n
		}
	}

	if v := os.Getenv("REFERRAL_RATE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Printf("Предупреждение: некорректное значение REFERRAL_RATE_WINDOW ('%s'), используется %s.", v, c.ReferralRateWindow)
		} else {
			c.ReferralRateWindow = d
		}
	}
}

// parseDatabaseURL раскладывает DATABASE_URL на составные части.
func (c *Config) parseDatabaseURL() error {
	parsedURL, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return fmt.Errorf("ошибка парсинга DATABASE_URL: %w", err)
	}
	c.DBHost = parsedURL.Hostname()
	c.DBPort = parsedURL.Port()
	if c.DBPort == "" {
		c.DBPort = "5432"
	}
	if parsedURL.User != nil {
		c.DBUser = parsedURL.User.Username()
		c.DBPassword, _ = parsedURL.User.Password()
	}
	c.DBName = strings.TrimPrefix(parsedURL.Path, "/")
	return nil
}

// IsDev сообщает, запущено ли приложение в режиме разработки.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// splitList разбирает список через запятую, пропуская пустые элементы.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
