package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/prize-competition/internal/ratelimit"
)

// LoadRateLimitBuckets starts from the stock bucket table and applies
// per-bucket overrides of the form RATE_LIMIT_<NAME>="count/window",
// e.g. RATE_LIMIT_TICKET_RESERVE="20/30s".  Bucket names use dashes in
// code and underscores in the environment.  Malformed overrides are
// logged and ignored so a typo cannot disable throttling.
func LoadRateLimitBuckets() map[string]ratelimit.Bucket {
	buckets := ratelimit.DefaultBuckets()
	for name := range buckets {
		envKey := "RATE_LIMIT_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		raw := os.Getenv(envKey)
		if raw == "" {
			continue
		}
		b, ok := parseBucket(raw)
		if !ok {
			log.Printf("config: ignoring malformed %s=%q (want count/window)", envKey, raw)
			continue
		}
		buckets[name] = b
	}
	return buckets
}

func parseBucket(raw string) (ratelimit.Bucket, bool) {
	countPart, windowPart, ok := strings.Cut(raw, "/")
	if !ok {
		return ratelimit.Bucket{}, false
	}
	count, err := strconv.Atoi(strings.TrimSpace(countPart))
	if err != nil || count < 1 {
		return ratelimit.Bucket{}, false
	}
	window, err := time.ParseDuration(strings.TrimSpace(windowPart))
	if err != nil || window <= 0 {
		return ratelimit.Bucket{}, false
	}
	return ratelimit.Bucket{Limit: count, Window: window}, true
}
