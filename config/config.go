package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Server
	ServerPort string

	// Job store. Empty DatabaseURL selects the in-memory store.
	DatabaseURL string

	// Redis (optional). Empty selects in-memory nonce stores.
	RedisAddr     string
	RedisPassword string

	// Blob store: "lighthouse" (default) or "minio".
	BlobBackend      string
	LighthouseAPIKey string
	MinioEndpoint    string
	MinioAccessKey   string
	MinioSecretKey   string
	MinioBucket      string
	MinioUseSSL      bool

	// FVM chain
	FVMRPCURL        string
	BackendWalletKey string
	RegistryContract string
	PaymentContract  string
	ConfirmTimeout   time.Duration

	// Auth
	JWTSecret  string
	AuthDomain string
	TokenTTL   time.Duration
	NonceTTL   time.Duration

	// Payments
	FeesFile        string
	PaymentNonceTTL time.Duration

	// Training
	StagingDir string
}

// Load loads configuration from the environment. A .env file in the
// working directory is read first when present.
func Load() *Config {
	godotenv.Load()

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8000"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		BlobBackend:      getEnv("BLOB_BACKEND", "lighthouse"),
		LighthouseAPIKey: getEnv("LIGHTHOUSE_API_KEY", ""),
		MinioEndpoint:    getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:   getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:   getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:      getEnv("MINIO_BUCKET", "decen-ai-assets"),
		MinioUseSSL:      getBoolEnv("MINIO_USE_SSL", false),

		FVMRPCURL:        getEnv("FVM_RPC_URL", "https://api.calibration.node.glif.io/rpc/v1"),
		BackendWalletKey: getEnv("BACKEND_WALLET_PRIVATE_KEY", ""),
		RegistryContract: getEnv("REGISTRY_CONTRACT_ADDRESS", ""),
		PaymentContract:  getEnv("PAYMENT_CONTRACT_ADDRESS", ""),
		ConfirmTimeout:   getDurationEnv("FVM_CONFIRM_TIMEOUT", 3*time.Minute),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		AuthDomain: getEnv("AUTH_DOMAIN", "localhost"),
		TokenTTL:   getDurationEnv("TOKEN_TTL", 24*time.Hour),
		NonceTTL:   getDurationEnv("NONCE_TTL", 5*time.Minute),

		FeesFile:        getEnv("FEES_FILE", "config/fees.yaml"),
		PaymentNonceTTL: getDurationEnv("PAYMENT_NONCE_TTL", 24*time.Hour),

		StagingDir: getEnv("STAGING_DIR", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

type feeFile struct {
	// Fees maps service type to the expected fee in wei (decimal string).
	Fees map[string]string `yaml:"fees"`
}

// LoadFees reads the service fee table. A missing file yields an empty
// table; payment verification then fails closed for every service.
func LoadFees(path string) (map[string]*big.Int, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]*big.Int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fee table %s: %w", path, err)
	}

	var f feeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fee table %s: %w", path, err)
	}

	fees := make(map[string]*big.Int, len(f.Fees))
	for service, amount := range f.Fees {
		wei, ok := new(big.Int).SetString(amount, 10)
		if !ok || wei.Sign() < 0 {
			return nil, fmt.Errorf("fee table %s: %q is not a valid wei amount for %s", path, amount, service)
		}
		fees[service] = wei
	}
	return fees, nil
}
