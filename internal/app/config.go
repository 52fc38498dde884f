package app

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr        string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	LogLevel        string
	LogFormat       string

	HostAPIURL  string
	FFMPEGPath  string
	FFProbePath string
	ManifestDir string
	TmpDir      string

	PartBudgetBytes     int64
	SegmentSeconds      int
	QuickStartParts     int
	ResolveTTLSeconds   int64
	ResolveCacheSize    int
	ManifestMaxAgeHours int64
	AllowedOrigins      []string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DB", "mediastream"),
		MongoCollection: getEnv("MONGO_COLLECTION", "assets"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),

		HostAPIURL:  getEnv("HOST_API_URL", "http://localhost:9000"),
		FFMPEGPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFProbePath: getEnv("FFPROBE_PATH", "ffprobe"),
		ManifestDir: getEnv("MANIFEST_DIR", "manifests"),
		TmpDir:      getEnv("TMP_DIR", os.TempDir()),

		PartBudgetBytes:     getEnvInt64("PART_BUDGET_BYTES", 2<<30),
		SegmentSeconds:      int(getEnvInt64("SEGMENT_DURATION_SECONDS", 2)),
		QuickStartParts:     int(getEnvInt64("QUICKSTART_PARTS", 5)),
		ResolveTTLSeconds:   getEnvInt64("RESOLVE_TTL_SECONDS", 3600),
		ResolveCacheSize:    int(getEnvInt64("RESOLVE_CACHE_SIZE", 1000)),
		ManifestMaxAgeHours: getEnvInt64("MANIFEST_CACHE_MAX_AGE_HOURS", 168),
		AllowedOrigins:      splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
