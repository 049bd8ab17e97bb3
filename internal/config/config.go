// Package config предоставляет структуры и функцию для загрузки конфига dashboard-api.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string        `yaml:"env" env:"APP_ENV" env-default:"local"`
	LogLevel                string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RabbitMQURL             string        `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env-default:"2s"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	Supabase                `yaml:"supabase"`
	Stripe                  `yaml:"stripe"`
	RateLimit               `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	WebRoot     string        `yaml:"web_root" env:"WEB_ROOT"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// Supabase настройки проверки access-токенов Supabase.
type Supabase struct {
	URL       string `yaml:"url" env:"SUPABASE_URL"`
	JWTSecret string `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET"`
}

// Stripe настройки платёжного провайдера.
type Stripe struct {
	SecretKey  string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	SuccessURL string `yaml:"success_url" env:"STRIPE_SUCCESS_URL" env-default:"http://localhost:3000/credits?success=true&session_id={CHECKOUT_SESSION_ID}"`
	CancelURL  string `yaml:"cancel_url" env:"STRIPE_CANCEL_URL" env-default:"http://localhost:3000/credits?canceled=true"`
}

// RateLimit настройки лимитера checkout-сессий и общего троттлинга API.
type RateLimit struct {
	Backend       string        `yaml:"backend" env:"RATE_LIMIT_BACKEND" env-default:"memory"`
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1m"`
	GlobalRPS     float64       `yaml:"global_rps" env-default:"20"`
	GlobalBurst   int           `yaml:"global_burst" env-default:"40"`
}

// MustLoad загружает конфиг из файла CONFIG_PATH, значения из окружения имеют приоритет.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"LogLevel: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Supabase:\n"+
			"  URL: %s\n"+
			"RateLimit:\n"+
			"  Backend: %s\n",
		c.Env,
		c.LogLevel,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.URL,
		c.Backend,
	)
}
