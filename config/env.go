package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIBaseURL   = "http://localhost:5000/api"
	DefaultDraftKey     = "kamnSolarFormData"
	DefaultGeocoderURL  = "https://nominatim.openstreetmap.org/reverse"
	DefaultUserAgent    = "fieldkit/1.0"
	DefaultAgentPort    = "8090"
	DefaultPhotoMaxEdge = 1600
	DefaultJPEGQuality  = 85
)

func init() {
	// Load env from .env
	godotenv.Load()
}

func APIBaseURL() string {
	return strings.TrimRight(stringFromEnv("API_BASE_URL", DefaultAPIBaseURL), "/")
}

func APITimeout() time.Duration {
	return time.Duration(intFromEnv("API_TIMEOUT_SECONDS", 30)) * time.Second
}

// DraftKey is the single well-known key the draft is persisted under.
func DraftKey() string {
	return stringFromEnv("DRAFT_KEY", DefaultDraftKey)
}

func DraftFile() string {
	if v := strings.TrimSpace(os.Getenv("DRAFT_FILE")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".fieldkit", "draft.json")
	}
	return filepath.Join(home, ".fieldkit", "draft.json")
}

func GeocoderURL() string {
	return stringFromEnv("GEOCODER_URL", DefaultGeocoderURL)
}

func GeocoderUserAgent() string {
	return stringFromEnv("GEOCODER_USER_AGENT", DefaultUserAgent)
}

func GeoTimeout() time.Duration {
	return time.Duration(intFromEnv("GEO_TIMEOUT_SECONDS", 15)) * time.Second
}

// GeoMaxAge is how old a cached device fix may be and still be reused.
func GeoMaxAge() time.Duration {
	return time.Duration(intFromEnv("GEO_MAX_AGE_SECONDS", 300)) * time.Second
}

func GeoDisabled() bool {
	return EnvBoolDefault("GEO_DISABLED", false)
}

// DeviceFix returns the statically configured device position, if any.
func DeviceFix() (lat, lng, accuracy float64, ok bool) {
	latRaw := strings.TrimSpace(os.Getenv("DEVICE_LAT"))
	lngRaw := strings.TrimSpace(os.Getenv("DEVICE_LNG"))
	if latRaw == "" || lngRaw == "" {
		return 0, 0, 0, false
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return 0, 0, 0, false
	}
	lng, err = strconv.ParseFloat(lngRaw, 64)
	if err != nil {
		return 0, 0, 0, false
	}
	accuracy, err = strconv.ParseFloat(strings.TrimSpace(os.Getenv("DEVICE_ACCURACY")), 64)
	if err != nil {
		accuracy = 0
	}
	return lat, lng, accuracy, true
}

func PhotoMaxDimension() int {
	return intFromEnv("PHOTO_MAX_DIMENSION", DefaultPhotoMaxEdge)
}

func PhotoJPEGQuality() int {
	q := intFromEnv("PHOTO_JPEG_QUALITY", DefaultJPEGQuality)
	if q < 1 || q > 100 {
		return DefaultJPEGQuality
	}
	return q
}

func AgentPort() string {
	port := strings.TrimSpace(os.Getenv("AGENT_PORT"))
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = DefaultAgentPort
	}
	return port
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

func ServiceName() string {
	return stringFromEnv("OTEL_SERVICE_NAME", "field_capture")
}

func EnvBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}

func stringFromEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func CORSAllowedOrigins() string {
	return strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
}
