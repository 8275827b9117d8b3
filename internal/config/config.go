package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Options struct {
	runAddr        string
	logLevel       string
	dataBaseDSN    string
	migrationsPath string
	defaultStock   int
	requestTimeout time.Duration
	allowedOrigins string
	metricsPrefix  string
}

func NewOptions() *Options {
	return new(Options)
}

// ParseFlags handles command line arguments
// and stores their values in the corresponding variables.
func (o *Options) ParseFlags() {
	// Load environment variables from the .env file
	loadEnvFile()

	if err := o.parse(flag.CommandLine, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

// parse registers the flags on fs with env-backed defaults and parses args.
func (o *Options) parse(fs *flag.FlagSet, args []string) error {
	defaultStock, err := strconv.Atoi(getEnvOrDefault("DEFAULT_STOCK", "500"))
	if err != nil {
		return fmt.Errorf("invalid DEFAULT_STOCK: %w", err)
	}
	requestTimeout, err := time.ParseDuration(getEnvOrDefault("REQUEST_TIMEOUT", "10s"))
	if err != nil {
		return fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	// Override variable values with values from command line flags
	fs.StringVar(&o.runAddr, "a", getEnvOrDefault("RUN_ADDRESS", ":8080"), "address and port to run server")
	fs.StringVar(&o.logLevel, "l", getEnvOrDefault("LOG_LEVEL", "debug"), "log level")
	fs.StringVar(&o.dataBaseDSN, "d", getEnvOrDefault("DATABASE_URI", ""), "database connection string")
	fs.StringVar(&o.migrationsPath, "m", getEnvOrDefault("MIGRATIONS_PATH", "migrations"), "path to the migrations directory")
	fs.IntVar(&o.defaultStock, "s", defaultStock, "stock value applied by POST /reset-stock")
	fs.DurationVar(&o.requestTimeout, "t", requestTimeout, "per-request timeout")
	fs.StringVar(&o.allowedOrigins, "o", getEnvOrDefault("ALLOWED_ORIGINS", "*"), "comma separated CORS origins")
	fs.StringVar(&o.metricsPrefix, "n", getEnvOrDefault("METRICS_PREFIX", "billing"), "prometheus metric name prefix")

	// parse the arguments passed to the server into registered variables
	if err := fs.Parse(args); err != nil {
		return err
	}

	if o.defaultStock < 0 {
		return fmt.Errorf("default stock must not be negative, got %d", o.defaultStock)
	}
	if o.requestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", o.requestTimeout)
	}
	return nil
}

func (o *Options) RunAddr() string {
	return o.runAddr
}

func (o *Options) LogLevel() string {
	return o.logLevel
}

func (o *Options) DataBaseDSN() string {
	return o.dataBaseDSN
}

func (o *Options) MigrationsPath() string {
	return o.migrationsPath
}

func (o *Options) DefaultStock() int {
	return o.defaultStock
}

func (o *Options) RequestTimeout() time.Duration {
	return o.requestTimeout
}

func (o *Options) MetricsPrefix() string {
	return o.metricsPrefix
}

// AllowedOrigins splits the configured origin list, dropping blanks.
func (o *Options) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(o.allowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// getEnvOrDefault reads an environment variable or returns a default value if the variable is not set or is empty.
func getEnvOrDefault(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// loadEnvFile loads environment variables from a .env file
func loadEnvFile() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	// the binary is run either from the repo root or from cmd/billing
	for _, envPath := range []string{
		filepath.Join(cwd, ".env"),
		filepath.Join(cwd, "..", "..", ".env"),
	} {
		if err := godotenv.Load(envPath); err == nil {
			log.Printf(".env file loaded from %s", envPath)
			return
		}
	}
	log.Printf("No .env file found near %s, proceeding without it", cwd)
}
