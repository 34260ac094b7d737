package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strconv"  // strconv converts strings to other types
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. The types reflect how the values are used
// in the application: strings for identifiers and secrets, ints for
// durations, costs and byte ceilings.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    TokenTTLHours  int    // bearer token time-to-live in hours
    BcryptCost     int    // bcrypt cost for password hashing
    UploadDir      string // root directory for uploaded originals and derivatives
    MaxUploadBytes int64  // single upload size ceiling, enforced at ingress
    ModelPath      string // path to the serialized classifier weights
}

// Load reads configuration values from environment variables and returns
// a Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message. Operational knobs
// with sensible defaults use the env* helpers instead.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),                       // environment (dev/test/prod)
        Port:           must("APP_PORT"),                      // port to bind the HTTP server
        DBUser:         must("DB_USER"),                       // database user
        DBPass:         os.Getenv("DB_PASS"),                  // database password (empty allowed)
        DBHost:         must("DB_HOST"),                       // database host
        DBPort:         must("DB_PORT"),                       // database port
        DBName:         must("DB_NAME"),                       // database name
        JWTSecret:      must("JWT_SECRET"),                    // secret used for signing JWTs
        TokenTTLHours:  envInt("TOKEN_TTL_HOURS", 8),          // bearer token lifetime
        BcryptCost:     mustInt("BCRYPT_COST"),                // bcrypt cost factor
        UploadDir:      envStr("UPLOAD_DIR", "uploads"),       // uploads root
        MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10<<20),  // 10 MB ceiling, single ingress point
        ModelPath:      must("MODEL_PATH"),                    // classifier weights file
    }
}

// Dev reports whether the deployment is configured for development
// diagnostics; error responses include internals only in this mode.
func (c Config) Dev() bool { return c.Env == "dev" }

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

func envStr(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func envInt(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return def
}

func envInt64(key string, def int64) int64 {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if n, err := strconv.ParseInt(v, 10, 64); err == nil {
        return n
    }
    return def
}
