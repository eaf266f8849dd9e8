package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds the PostgreSQL connection details.
type DatabaseConfig struct {
	Host     string
	Port     int32
	User     string
	Password string
	DBName   string
}

type GlobalConfig struct {
	LogLevel string
	Host     string
	Port     string

	Database DatabaseConfig

	RabbitHost string
	RabbitPort int32
	RabbitUser string
	RabbitPass string

	// Protocol watchdogs and the matchmaking cycle period.
	AuthTimeout       time.Duration
	InactivityTimeout time.Duration
	MatchmakingPeriod time.Duration
}

// AMQPURL builds the RabbitMQ connection string.
func (c GlobalConfig) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.RabbitUser, c.RabbitPass, c.RabbitHost, c.RabbitPort)
}

func NewConfig() (GlobalConfig, error) {
	host, err := requiredEnv("HOST")
	if err != nil {
		return GlobalConfig{}, err
	}
	port, err := requiredEnv("PORT")
	if err != nil {
		return GlobalConfig{}, err
	}
	logLevel, err := requiredEnv("LOG_LEVEL")
	if err != nil {
		return GlobalConfig{}, err
	}

	dbHost, err := requiredEnv("DB_HOST")
	if err != nil {
		return GlobalConfig{}, err
	}
	dbPort, err := requiredEnvInt32("DB_PORT")
	if err != nil {
		return GlobalConfig{}, err
	}
	dbUser, err := requiredEnv("DB_USER")
	if err != nil {
		return GlobalConfig{}, err
	}
	dbPass, err := requiredEnv("DB_PASS")
	if err != nil {
		return GlobalConfig{}, err
	}
	dbName, err := requiredEnv("DB_NAME")
	if err != nil {
		return GlobalConfig{}, err
	}

	rabbitHost, err := requiredEnv("RABBITMQ_HOST")
	if err != nil {
		return GlobalConfig{}, err
	}
	rabbitPort, err := requiredEnvInt32("RABBITMQ_PORT")
	if err != nil {
		return GlobalConfig{}, err
	}
	rabbitUser, err := requiredEnv("RABBITMQ_USER")
	if err != nil {
		return GlobalConfig{}, err
	}
	rabbitPass, err := requiredEnv("RABBITMQ_PASS")
	if err != nil {
		return GlobalConfig{}, err
	}

	authTimeout, err := durationEnv("AUTH_TIMEOUT_SECONDS", 3*time.Second)
	if err != nil {
		return GlobalConfig{}, err
	}
	inactivityTimeout, err := durationEnv("INACTIVITY_TIMEOUT_SECONDS", 180*time.Second)
	if err != nil {
		return GlobalConfig{}, err
	}
	matchmakingPeriod, err := durationEnv("MATCHMAKING_PERIOD_SECONDS", time.Second)
	if err != nil {
		return GlobalConfig{}, err
	}

	return GlobalConfig{
		LogLevel: logLevel,
		Host:     host,
		Port:     port,
		Database: DatabaseConfig{
			Host:     dbHost,
			Port:     dbPort,
			User:     dbUser,
			Password: dbPass,
			DBName:   dbName,
		},
		RabbitHost:        rabbitHost,
		RabbitPort:        rabbitPort,
		RabbitUser:        rabbitUser,
		RabbitPass:        rabbitPass,
		AuthTimeout:       authTimeout,
		InactivityTimeout: inactivityTimeout,
		MatchmakingPeriod: matchmakingPeriod,
	}, nil
}

func requiredEnv(name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("%s environment variable is required", name)
	}
	return value, nil
}

func requiredEnvInt32(name string) (int32, error) {
	value, err := requiredEnv(name)
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", name, err)
	}
	return int32(parsed), nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(name)
	if value == "" {
		return fallback, nil
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number of seconds: %w", name, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
