package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Required values are enforced by must()
// and a missing one halts startup; tunables fall back to the documented
// defaults of the reservation core.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to sign JWTs

	AccessTTLMin int // access token time-to-live in minutes
	BcryptCost   int // bcrypt cost for password hashing

	// StoreBackend selects the key-value backend at startup: "redis"
	// (production) or "memory" (single-instance development).  Nothing
	// outside the wiring in cmd/server knows which one is active.
	StoreBackend string

	ReservationTTL  time.Duration // how long a ticket reservation is held
	QuizMaxAttempts int           // wrong answers allowed per lockout window
	QuizLockout     time.Duration // lockout window after exhausting attempts
	QuizPassedTTL   time.Duration // how long a correct answer admits checkout
}

// Load reads configuration from the environment.  Missing required
// variables cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"), // empty allowed
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),

		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 30),
		BcryptCost:   envInt("BCRYPT_COST", 12),

		StoreBackend: envStr("STORE_BACKEND", "redis"),

		ReservationTTL:  envDur("RESERVATION_TTL", 10*time.Minute),
		QuizMaxAttempts: envInt("QUIZ_MAX_ATTEMPTS", 3),
		QuizLockout:     envDur("QUIZ_LOCKOUT_WINDOW", 15*time.Minute),
		QuizPassedTTL:   envDur("QUIZ_PASSED_TTL", time.Hour),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
