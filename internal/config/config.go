package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/team-reconciler/internal/platform/logging"
	"github.com/riskibarqy/team-reconciler/internal/platform/resilience"
	"github.com/riskibarqy/team-reconciler/internal/usecase"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Config stores runtime configuration for the reconciler.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	LogLevel       logging.Level

	MappingStore string
	MappingFile  string
	DBURL        string
	AliasFile    string

	ScorelineBaseURL     string
	ScorelineToken       string
	ScorelineTimeout     time.Duration
	ScorelineMaxRetries  int
	ScorelineMinInterval time.Duration
	ScorelineCircuit     resilience.CircuitBreakerConfig

	ClubdataBaseURL     string
	ClubdataToken       string
	ClubdataTimeout     time.Duration
	ClubdataMaxRetries  int
	ClubdataMinInterval time.Duration
	ClubdataCircuit     resilience.CircuitBreakerConfig

	RangeProbeEnabled       bool
	MaxRangeProbe           int
	ProbeRangeByCompetition map[string]usecase.ProbeRange

	ReconcileMaxWorkers int
	AuditMaxWorkers     int

	ResolveCacheEnabled bool
	ResolveCacheTTL     time.Duration
}

// Load reads configuration from environment variables and validates it.
func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	mappingStore := strings.ToLower(strings.TrimSpace(getEnv("MAPPING_STORE", StoreFile)))
	switch mappingStore {
	case StoreMemory, StoreFile, StorePostgres:
	default:
		return Config{}, fmt.Errorf("invalid MAPPING_STORE %q: valid values are %s, %s, %s", mappingStore, StoreMemory, StoreFile, StorePostgres)
	}

	mappingFile := strings.TrimSpace(getEnv("MAPPING_FILE", "mappings.json"))
	if mappingStore == StoreFile && mappingFile == "" {
		return Config{}, fmt.Errorf("MAPPING_FILE is required when MAPPING_STORE=%s", StoreFile)
	}

	dbURL := strings.TrimSpace(getEnv("DB_URL", ""))
	if mappingStore == StorePostgres && dbURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required when MAPPING_STORE=%s", StorePostgres)
	}

	scorelineToken := strings.TrimSpace(getEnv("SCORELINE_TOKEN", ""))
	if scorelineToken == "" {
		return Config{}, fmt.Errorf("SCORELINE_TOKEN is required")
	}
	scorelineTimeout, err := getEnvAsDuration("SCORELINE_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse SCORELINE_TIMEOUT: %w", err)
	}
	scorelineMaxRetries, err := getEnvAsInt("SCORELINE_MAX_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse SCORELINE_MAX_RETRIES: %w", err)
	}
	scorelineMinInterval, err := getEnvAsDuration("SCORELINE_MIN_INTERVAL", 250*time.Millisecond)
	if err != nil {
		return Config{}, fmt.Errorf("parse SCORELINE_MIN_INTERVAL: %w", err)
	}
	scorelineCircuit, err := loadCircuitConfig("SCORELINE")
	if err != nil {
		return Config{}, err
	}

	clubdataToken := strings.TrimSpace(getEnv("CLUBDATA_TOKEN", ""))
	if clubdataToken == "" {
		return Config{}, fmt.Errorf("CLUBDATA_TOKEN is required")
	}
	clubdataTimeout, err := getEnvAsDuration("CLUBDATA_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse CLUBDATA_TIMEOUT: %w", err)
	}
	clubdataMaxRetries, err := getEnvAsInt("CLUBDATA_MAX_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse CLUBDATA_MAX_RETRIES: %w", err)
	}
	clubdataMinInterval, err := getEnvAsDuration("CLUBDATA_MIN_INTERVAL", 250*time.Millisecond)
	if err != nil {
		return Config{}, fmt.Errorf("parse CLUBDATA_MIN_INTERVAL: %w", err)
	}
	clubdataCircuit, err := loadCircuitConfig("CLUBDATA")
	if err != nil {
		return Config{}, err
	}

	rangeProbeEnabled, err := strconv.ParseBool(getEnv("RANGE_PROBE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RANGE_PROBE_ENABLED: %w", err)
	}
	maxRangeProbe, err := getEnvAsInt("MAX_RANGE_PROBE", 50)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_RANGE_PROBE: %w", err)
	}
	if maxRangeProbe < 0 {
		return Config{}, fmt.Errorf("MAX_RANGE_PROBE must be >= 0")
	}
	probeRanges, err := parseProbeRangeMap(getEnv("PROBE_RANGE_BY_COMPETITION", ""))
	if err != nil {
		return Config{}, fmt.Errorf("parse PROBE_RANGE_BY_COMPETITION: %w", err)
	}
	if rangeProbeEnabled && len(probeRanges) == 0 {
		return Config{}, fmt.Errorf("PROBE_RANGE_BY_COMPETITION is required when RANGE_PROBE_ENABLED=true")
	}

	reconcileMaxWorkers, err := getEnvAsInt("RECONCILE_MAX_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse RECONCILE_MAX_WORKERS: %w", err)
	}
	auditMaxWorkers, err := getEnvAsInt("AUDIT_MAX_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse AUDIT_MAX_WORKERS: %w", err)
	}

	resolveCacheEnabled, err := strconv.ParseBool(getEnv("RESOLVE_CACHE_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RESOLVE_CACHE_ENABLED: %w", err)
	}
	resolveCacheTTL, err := getEnvAsDuration("RESOLVE_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("parse RESOLVE_CACHE_TTL: %w", err)
	}

	return Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("SERVICE_NAME", "team-reconciler"),
		ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
		LogLevel:       parseLogLevel(getEnv("LOG_LEVEL", "info")),

		MappingStore: mappingStore,
		MappingFile:  mappingFile,
		DBURL:        dbURL,
		AliasFile:    strings.TrimSpace(getEnv("ALIAS_FILE", "")),

		ScorelineBaseURL:     strings.TrimSpace(getEnv("SCORELINE_BASE_URL", "")),
		ScorelineToken:       scorelineToken,
		ScorelineTimeout:     scorelineTimeout,
		ScorelineMaxRetries:  scorelineMaxRetries,
		ScorelineMinInterval: scorelineMinInterval,
		ScorelineCircuit:     scorelineCircuit,

		ClubdataBaseURL:     strings.TrimSpace(getEnv("CLUBDATA_BASE_URL", "")),
		ClubdataToken:       clubdataToken,
		ClubdataTimeout:     clubdataTimeout,
		ClubdataMaxRetries:  clubdataMaxRetries,
		ClubdataMinInterval: clubdataMinInterval,
		ClubdataCircuit:     clubdataCircuit,

		RangeProbeEnabled:       rangeProbeEnabled,
		MaxRangeProbe:           maxRangeProbe,
		ProbeRangeByCompetition: probeRanges,

		ReconcileMaxWorkers: reconcileMaxWorkers,
		AuditMaxWorkers:     auditMaxWorkers,

		ResolveCacheEnabled: resolveCacheEnabled,
		ResolveCacheTTL:     resolveCacheTTL,
	}, nil
}

func loadCircuitConfig(prefix string) (resilience.CircuitBreakerConfig, error) {
	defaults := resilience.DefaultCircuitBreakerConfig()

	enabled, err := strconv.ParseBool(getEnv(prefix+"_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("parse %s_CIRCUIT_ENABLED: %w", prefix, err)
	}
	failureCount, err := getEnvAsInt(prefix+"_CIRCUIT_FAILURE_COUNT", defaults.FailureThreshold)
	if err != nil {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("parse %s_CIRCUIT_FAILURE_COUNT: %w", prefix, err)
	}
	openTimeout, err := getEnvAsDuration(prefix+"_CIRCUIT_OPEN_TIMEOUT", defaults.OpenTimeout)
	if err != nil {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("parse %s_CIRCUIT_OPEN_TIMEOUT: %w", prefix, err)
	}
	halfOpenMaxReq, err := getEnvAsInt(prefix+"_CIRCUIT_HALF_OPEN_MAX_REQ", defaults.HalfOpenMaxReq)
	if err != nil {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("parse %s_CIRCUIT_HALF_OPEN_MAX_REQ: %w", prefix, err)
	}

	return resilience.NormalizeCircuitBreakerConfig(resilience.CircuitBreakerConfig{
		Enabled:          enabled,
		FailureThreshold: failureCount,
		OpenTimeout:      openTimeout,
		HalfOpenMaxReq:   halfOpenMaxReq,
	}), nil
}

// parseProbeRangeMap parses "competition:from-to,..." items, e.g.
// "premier-league:133600-133620,la-liga:134200-134240".
func parseProbeRangeMap(raw string) (map[string]usecase.ProbeRange, error) {
	out := make(map[string]usecase.ProbeRange)
	for _, part := range strings.Split(raw, ",") {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}

		segments := strings.SplitN(item, ":", 2)
		if len(segments) != 2 {
			return nil, fmt.Errorf("invalid map item %q, expected competition:from-to", item)
		}
		key := strings.TrimSpace(segments[0])
		if key == "" {
			return nil, fmt.Errorf("empty competition in item %q", item)
		}

		bounds := strings.SplitN(strings.TrimSpace(segments[1]), "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid range in item %q, expected from-to", item)
		}
		from, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid range start in item %q: %w", item, err)
		}
		to, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid range end in item %q: %w", item, err)
		}
		if from <= 0 || to < from {
			return nil, fmt.Errorf("range must satisfy 0 < from <= to in item %q", item)
		}

		out[key] = usecase.ProbeRange{From: from, To: to}
	}

	return out, nil
}

func parseAppEnv(v string) (string, error) {
	env := strings.ToLower(strings.TrimSpace(v))
	switch env {
	case EnvDev, EnvStage, EnvProd:
		return env, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if out <= 0 {
		return 0, fmt.Errorf("duration must be > 0")
	}

	return out, nil
}
