package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/chillcar/service-booking/internal/domain/booking"
	"github.com/chillcar/service-booking/internal/platform/config"
)

// AdminConfig seeds the first admin account on startup. An empty email skips seeding.
type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port         string
	AppEnv       string
	FrontendURL  string
	Workshop     string
	CookieSecure bool
	Window       booking.ServiceWindow
	DBConfig     config.DatabaseConfig
	JWTConfig    config.JWTConfig
	KafkaConfig  config.KafkaConfig
	RedisConfig  config.RedisConfig
	Admin        AdminConfig
}

// Load reads configuration from CARSERVICE_* environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("CARSERVICE")
	if err != nil {
		return nil, err
	}
	v.SetDefault("DB_NAME", "carservice")
	v.SetDefault("WORKSHOP_NAME", "ChillCar Workshop")
	v.SetDefault("TIMEZONE", "Asia/Kuala_Lumpur")
	v.SetDefault("OPEN_HOUR", "08:00")
	v.SetDefault("CLOSE_HOUR", "17:00")
	v.SetDefault("ADMIN_NAME", "Workshop Admin")

	window, err := loadWindow(v)
	if err != nil {
		return nil, err
	}

	cfg := &ServiceConfig{
		Port:         config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:       config.GetAppEnv(v),
		FrontendURL:  v.GetString("FRONTEND_URL"),
		Workshop:     v.GetString("WORKSHOP_NAME"),
		CookieSecure: v.GetBool("COOKIE_SECURE"),
		Window:       window,
		DBConfig:     config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:    config.LoadJWTConfig(v),
		KafkaConfig:  config.LoadKafkaConfig(v),
		RedisConfig:  config.LoadRedisConfig(v),
		Admin: AdminConfig{
			Name:     v.GetString("ADMIN_NAME"),
			Email:    v.GetString("ADMIN_EMAIL"),
			Password: v.GetString("ADMIN_PASSWORD"),
		},
	}
	if cfg.JWTConfig.Secret == "" {
		return nil, fmt.Errorf("CARSERVICE_JWT_SECRET is required")
	}
	return cfg, nil
}

func loadWindow(v *viper.Viper) (booking.ServiceWindow, error) {
	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return booking.ServiceWindow{}, fmt.Errorf("invalid CARSERVICE_TIMEZONE: %w", err)
	}
	open, err := parseClock(v.GetString("OPEN_HOUR"))
	if err != nil {
		return booking.ServiceWindow{}, fmt.Errorf("invalid CARSERVICE_OPEN_HOUR: %w", err)
	}
	closing, err := parseClock(v.GetString("CLOSE_HOUR"))
	if err != nil {
		return booking.ServiceWindow{}, fmt.Errorf("invalid CARSERVICE_CLOSE_HOUR: %w", err)
	}
	if closing <= open {
		return booking.ServiceWindow{}, fmt.Errorf("closing hour must be after opening hour")
	}
	return booking.ServiceWindow{Open: open, Close: closing, Location: loc}, nil
}

// parseClock turns "HH:MM" into an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
