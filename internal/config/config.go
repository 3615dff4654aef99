// Package config содержит логику чтения конфигурации сервиса приёма заказов.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса приёма заказов.
type Config struct {
	RunAddress        string `env:"RUN_ADDRESS"`
	DatabaseURI       string `env:"DATABASE_URI"`
	NotifierAddress   string `env:"NOTIFIER_ADDRESS"`
	AuthSecret        string `env:"AUTH_SECRET"`
	OrderPrefix       string `env:"ORDER_PREFIX"`
	StampsPerFreeItem int    `env:"LOYALTY_STAMPS_TARGET"`
	// LoyaltyCategories — список категорий через запятую, покупки в которых дают штампы.
	LoyaltyCategories []string `env:"LOYALTY_CATEGORIES" envSeparator:","`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envNotifierAddress := cfg.NotifierAddress
	envAuthSecret := cfg.AuthSecret
	envOrderPrefix := cfg.OrderPrefix

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.NotifierAddress, "n", "", "notification dispatcher address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for staff auth cookies")
	flag.StringVar(&cfg.OrderPrefix, "p", "TW", "order number prefix")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envNotifierAddress != "" {
		cfg.NotifierAddress = envNotifierAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envOrderPrefix != "" {
		cfg.OrderPrefix = envOrderPrefix
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.OrderPrefix == "" {
		cfg.OrderPrefix = "TW"
	}

	return cfg, nil
}
