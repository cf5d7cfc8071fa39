package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Over-allocation policies for letter of credit allocations.
// "allow" matches the historical behaviour: allocations may exceed the
// LC's face quantity and remaining quantity goes negative.
const (
	OverAllocationAllow  = "allow"
	OverAllocationWarn   = "warn"
	OverAllocationReject = "reject"
)

type Config struct {
	Port                 string
	DBDriver             string // sqlite or postgres
	DBDSN                string
	JWTSecret            string
	RedisAddr            string // empty disables the quantity cache
	RedisPassword        string
	RedisDB              int
	OverAllocationPolicy string
}

// Load reads configuration from a .env file if present, falling back to
// process environment variables.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:                 getEnv("PORT", "8080"),
		DBDriver:             getEnv("DB_DRIVER", "sqlite"),
		DBDSN:                getEnv("DB_DSN", "tradeops.db"),
		JWTSecret:            getEnv("JWT_SECRET", "tradeops-secret-key"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              redisDB,
		OverAllocationPolicy: getEnv("OVERALLOCATION_POLICY", OverAllocationAllow),
	}

	switch cfg.OverAllocationPolicy {
	case OverAllocationAllow, OverAllocationWarn, OverAllocationReject:
	default:
		log.Warn().
			Str("policy", cfg.OverAllocationPolicy).
			Msg("unknown over-allocation policy, falling back to allow")
		cfg.OverAllocationPolicy = OverAllocationAllow
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
