package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Kafka    KafkaConfig    `json:"kafka"`
	Logger   LoggerConfig   `json:"logger"`
	Fees     FeesConfig     `json:"fees"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host           string `json:"host"`
	Port           string `json:"port"`
	User           string `json:"user"`
	Password       string `json:"password"`
	DBName         string `json:"db_name"`
	SSLMode        string `json:"ssl_mode"`
	ConnectRetries int    `json:"connect_retries"`
	AutoMigrate    bool   `json:"auto_migrate"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	FeeRules string `json:"fee_rules"`
	Quotes   string `json:"quotes"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// FeesConfig хранит параметры политики комиссий для правил service_based
type FeesConfig struct {
	RoutineMaintenanceServices  []string `json:"routine_maintenance_services"`
	RoutineMaintenanceCap       float64  `json:"routine_maintenance_cap"`
	DiagnosticService           string   `json:"diagnostic_service"`
	DiagnosticSmallJobThreshold float64  `json:"diagnostic_small_job_threshold"`
	DiagnosticFloor             float64  `json:"diagnostic_floor"`
	HighValueThreshold          float64  `json:"high_value_threshold"`
	HighValueCap                float64  `json:"high_value_cap"`
	RuleCacheTTLSeconds         int      `json:"rule_cache_ttl_seconds"`
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	// Локальный .env необязателен, в проде переменные приходят из окружения.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "marketplace_user"),
			Password:       getEnv("DB_PASSWORD", "marketplace_pass"),
			DBName:         getEnv("DB_NAME", "repair_marketplace"),
			SSLMode:        getEnv("DB_SSL_MODE", "disable"),
			ConnectRetries: getEnvAsInt("DB_CONNECT_RETRIES", 3),
			AutoMigrate:    getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "fee-service"),
			Topics: Topics{
				FeeRules: getEnv("KAFKA_TOPIC_FEE_RULES", "fee_rules"),
				Quotes:   getEnv("KAFKA_TOPIC_QUOTES", "quotes"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Fees: FeesConfig{
			RoutineMaintenanceServices:  getEnvAsList("FEES_ROUTINE_SERVICES", []string{"oil_change", "tire_rotation", "air_filter", "wiper_blades"}),
			RoutineMaintenanceCap:       getEnvAsFloat("FEES_ROUTINE_CAP_PERCENT", 8),
			DiagnosticService:           getEnv("FEES_DIAGNOSTIC_SERVICE", "diagnostic"),
			DiagnosticSmallJobThreshold: getEnvAsFloat("FEES_DIAGNOSTIC_SMALL_JOB", 100),
			DiagnosticFloor:             getEnvAsFloat("FEES_DIAGNOSTIC_FLOOR_PERCENT", 15),
			HighValueThreshold:          getEnvAsFloat("FEES_HIGH_VALUE_THRESHOLD", 1000),
			HighValueCap:                getEnvAsFloat("FEES_HIGH_VALUE_CAP_PERCENT", 10),
			RuleCacheTTLSeconds:         getEnvAsInt("FEES_RULE_CACHE_TTL_SECONDS", 300),
		},
	}
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat получает значение переменной окружения как float64 с значением по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool с значением по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}

// getEnvAsList разбирает список через запятую, пустые элементы отбрасываются
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
