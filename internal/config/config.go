package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr            string
	InstructorToken string
	RandSeed        int64
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() APIConfig {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("CAFEBOSS_API_ADDR", ":8080")
	}

	return APIConfig{
		Addr:            addr,
		InstructorToken: strings.TrimSpace(os.Getenv("CAFEBOSS_INSTRUCTOR_TOKEN")),
		RandSeed:        envInt64Default("CAFEBOSS_RAND_SEED", 0),
		RequestTimeout:  envDurationDefault("CAFEBOSS_REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: envDurationDefault("CAFEBOSS_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("CAFE_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
