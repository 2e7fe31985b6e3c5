package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Server captures process-level configuration. The registry owner is a
// configuration-time constant: the single root of trust for role grants.
type Server struct {
	Addr          string
	Owner         common.Address
	JWTSigningKey string

	// PostgresURL empty means the in-memory store backs the registry
	// (development / tests only).
	PostgresURL string

	Redis RedisConfig
	// DocumentCacheTTL bounds how long a cached document read may lag a
	// concurrent revocation observed through a different replica.
	DocumentCacheTTL time.Duration

	EventBuffer int
}

// DefaultJWTSigningKey is the development fallback shared by the server and
// the tokengen command. Must be overridden in production.
const DefaultJWTSigningKey = "dev-secret-key-change-in-production"

// RedisConfig holds connection settings for the document cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean. REGISTRY_OWNER is required; everything else has a default.
func FromEnv() (Server, error) {
	addr := os.Getenv("CERTLEDGER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	ownerHex := os.Getenv("REGISTRY_OWNER")
	if !common.IsHexAddress(ownerHex) {
		return Server{}, fmt.Errorf("REGISTRY_OWNER must be a hex wallet address, got %q", ownerHex)
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = DefaultJWTSigningKey
	}

	return Server{
		Addr:          addr,
		Owner:         common.HexToAddress(ownerHex),
		JWTSigningKey: jwtSigningKey,
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		DocumentCacheTTL: 5 * time.Minute,
		EventBuffer:      256,
	}, nil
}
