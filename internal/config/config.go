package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // For durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort  string // Application port
	IsProd   bool   // Is production environment
	LogLevel string // logrus level name

	DBDriver   string // memory, mysql or postgres
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name

	RedisAddr string // Redis server address, empty disables the catalog cache
	RedisPass string // Redis password
	RedisDB   int    // Redis database number

	JWTSecret string // JWT secret key, empty disables the identity check

	WalletAutoProvision bool          // Create missing wallets on read
	LedgerOpTimeout     time.Duration // Upper bound of one ledger unit of work

	GachaSeed   *uint64 // Fixed random seed, nil draws from the OS
	CatalogSrc  string  // file or db
	CatalogFile string  // YAML pool file, empty uses the embedded default
	CatalogTTL  time.Duration
	RabbitMQURL string // AMQP url, empty disables ledger events
	MongoURI    string // Audit archive
	MongoDB     string // Audit database name
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:  getEnv("APP_PORT", "5003"),     // Application port
		IsProd:   os.Getenv("IS_PROD") == "true", // Is production environment
		LogLevel: getEnv("LOG_LEVEL", "info"),    // Log level

		DBDriver:   getEnv("DB_DRIVER", "memory"),      // Ledger store backend
		DBUser:     os.Getenv("DB_USER"),               // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),           // Database password
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),     // Database host
		DBPort:     os.Getenv("DB_PORT"),               // Database port, driver default when empty
		DBName:     getEnv("DB_NAME", "umbra_payment"), // Database name

		RedisAddr: os.Getenv("REDIS_ADDR"),    // Redis server address
		RedisPass: os.Getenv("REDIS_PASS"),    // Redis password
		RedisDB:   getEnvAsInt("REDIS_DB", 0), // Redis database number

		JWTSecret: os.Getenv("JWT_SECRET"), // JWT secret key

		WalletAutoProvision: getEnv("WALLET_AUTO_PROVISION", "true") == "true",    // Auto-provision on read
		LedgerOpTimeout:     getEnvAsDuration("LEDGER_OP_TIMEOUT", 5*time.Second), // Unit of work bound

		GachaSeed:   getEnvAsSeed("GACHA_RANDOM_SEED"),                     // Reproducible draws
		CatalogSrc:  getEnv("CATALOG_SOURCE", "file"),                      // Pool definitions source
		CatalogFile: os.Getenv("CATALOG_FILE"),                             // Pool definitions file
		CatalogTTL:  getEnvAsDuration("CATALOG_CACHE_TTL", 60*time.Second), // Catalog cache TTL
		RabbitMQURL: os.Getenv("RABBITMQ_URL"),                             // Ledger events broker
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),      // Audit archive
		MongoDB:     getEnv("MONGO_DB", "umbra_audit"),                     // Audit database
	}
}

// getEnv returns the value of the environment variable or a default value if not set
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvAsInt returns the value of the environment variable as an integer or a default value if not set
func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// getEnvAsDuration accepts Go durations ("5s") or plain seconds ("5")
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

// getEnvAsSeed returns nil when the variable is unset or not a number
func getEnvAsSeed(key string) *uint64 {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	seed, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return nil
	}
	return &seed
}
