// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string        `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	RabbitMQURL             string        `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
	SubStateInterval        time.Duration `yaml:"substate_interval" env-default:"1h"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	SessionToken            `yaml:"session_token"`
	Portal                  `yaml:"portal"`
	SMTP                    `yaml:"smtp"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"0.0.0.0:8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// SessionToken структура для работы с сессионной cookie (JWT)
type SessionToken struct {
	SecretKey  string        `yaml:"secret_key" env:"SESSION_SECRET_KEY"`
	TokenTTL   time.Duration `yaml:"token_ttl" env-default:"720h"`
	CookieName string        `yaml:"cookie_name" env-default:"intrarez_session"`
}

// Portal структура с настройками движка капчивного портала.
//
// ForceIP и ForceMAC подменяют реальное определение сетевой личности
// (для тестовых стендов). NetLocs — список хостов, на которые разрешены
// редиректы; всё остальное считается чужим.
type Portal struct {
	Maintenance    bool     `yaml:"maintenance" env:"MAINTENANCE"`
	ClientIPHeader string   `yaml:"client_ip_header" env-default:"X-Real-Ip"`
	ARPCommand     string   `yaml:"arp_command" env-default:"/sbin/arp"`
	ForceIP        string   `yaml:"force_ip" env:"FORCE_IP"`
	ForceMAC       string   `yaml:"force_mac" env:"FORCE_MAC"`
	NetLocs        []string `yaml:"netlocs"`
	DHCPHostsFile  string   `yaml:"dhcp_hosts_file" env-default:"/var/lib/intrarez/dhcp_hosts"`
}

// SMTP структура для настройки отправки почты
type SMTP struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort string `yaml:"smtp_port"`
	SMTPUser string `yaml:"smtp_user"`
	SMTPPass string `yaml:"smtp_pass"`
}

// MustLoad функция для загрузки конфига из файла, указанного в CONFIG_PATH
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
