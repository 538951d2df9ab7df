package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Verifier VerifierConfig `yaml:"verifier"`
	Auth     AuthConfig     `yaml:"auth"`
	Admin    AdminConfig    `yaml:"admin"`
	CORS     CORSConfig     `yaml:"cors"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// LogConfig logrus configuration
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DatabaseConfig Database configuration
type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	Driver          string `yaml:"driver"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // seconds
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	Enabled       bool               `yaml:"enabled"`
	URL           string             `yaml:"url"`
	Timeout       int                `yaml:"timeout"`        // seconds
	ReconnectWait int                `yaml:"reconnect_wait"` // seconds
	MaxReconnects int                `yaml:"max_reconnects"`
	Subjects      NATSSubjectsConfig `yaml:"subjects"`
}

// NATSSubjectsConfig subjects used by the bridge
type NATSSubjectsConfig struct {
	InboundProofs  string `yaml:"inbound_proofs"`
	MetadataProofs string `yaml:"metadata_proofs"`
	VerifyRequest  string `yaml:"verify_request"`
	VerifyResult   string `yaml:"verify_result"`
	EventsPrefix   string `yaml:"events_prefix"`
}

// BridgeConfig bridge identity and storage economics. Amounts are decimal strings in the
// smallest unit of the destination platform.
type BridgeConfig struct {
	AccountID         string `yaml:"account_id"`         // identity sub-contract ids are derived from
	OwnerID           string `yaml:"owner_id"`           // may initialize and set the controller
	ControllerID      string `yaml:"controller_id"`      // may pause
	VerifierID        string `yaml:"verifier_id"`        // proof verifier identity
	LockerAddress     string `yaml:"locker_address"`     // origin locker contract
	MetadataConnector string `yaml:"metadata_connector"` // origin metadata connector contract
	EmitterAddress    string `yaml:"emitter_address"`    // address stamped on outbound Withdraw logs

	StorageByteCost        string `yaml:"storage_byte_cost"`
	BridgeTokenInitBalance string `yaml:"bridge_token_init_balance"`
	TokenStorageDeposit    string `yaml:"token_storage_deposit"`
	UpdateMetadataDeposit  string `yaml:"update_metadata_deposit"`
}

// VerifierConfig proof verification gateway configuration
type VerifierConfig struct {
	Mode             string `yaml:"mode"` // http or nats
	BaseURL          string `yaml:"baseUrl"`
	Timeout          int    `yaml:"timeout"` // seconds
	RetryAttempts    uint   `yaml:"retryAttempts"`
	RetryDelayMs     int    `yaml:"retryDelayMs"`
	Workers          int    `yaml:"workers"`
	RecoveryInterval int    `yaml:"recoveryInterval"` // seconds between re-dispatch scans
	StaleAfter       int    `yaml:"staleAfter"`       // seconds a transfer may stay in verifying before re-dispatch
}

// AuthConfig caller identity tokens
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	Issuer        string `yaml:"issuer"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// AdminConfig Admin API access control configuration
type AdminConfig struct {
	AllowedIPs   []string `yaml:"allowedIPs"`   // List of allowed IP addresses or CIDR ranges
	Username     string   `yaml:"username"`     // admin login name
	PasswordHash string   `yaml:"passwordHash"` // bcrypt hash
	TOTPSecret   string   `yaml:"totpSecret"`
	JWTSecret    string   `yaml:"jwtSecret"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`   // List of allowed origins
	AllowCredentials bool     `yaml:"allowCredentials"` // Whether to allow credentials
	MaxAge           int      `yaml:"maxAge"`           // Max age for preflight requests (seconds)
}

const (
	VerifierModeHTTP = "http"
	VerifierModeNATS = "nats"
)

var AppConfig *Config

// LoadConfig Load configuration file
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			fmt.Printf("🔧 Using local configuration file: config.local.yaml\n")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return err
	}
	fmt.Printf("✅ [%s] Loading configuration from config file: %s\n", time.Now().Format("2006-01-02 15:04:05"), configPath)
	fmt.Printf("📋 [Config] Bridge account=%s locker=%s verifier=%s (%s)\n",
		cfg.Bridge.AccountID, cfg.Bridge.LockerAddress, cfg.Bridge.VerifierID, cfg.Verifier.Mode)
	if len(cfg.Admin.AllowedIPs) > 0 {
		fmt.Printf("📋 [Config] Admin IP whitelist loaded: %d IPs/CIDRs configured\n", len(cfg.Admin.AllowedIPs))
	} else {
		fmt.Printf("📋 [Config] Admin IP whitelist: not configured (localhost-only mode)\n")
	}

	AppConfig = cfg
	return nil
}

// Parse decodes YAML, applies environment overrides and defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	overrideFromEnv(&cfg)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overrideFromEnv Override configuration from environment variables
func overrideFromEnv(cfg *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		cfg.NATS.URL = natsURL
		cfg.NATS.Enabled = true
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			cfg.NATS.Timeout = t
		}
	}

	if prover := os.Getenv("PROVER_BASE_URL"); prover != "" {
		cfg.Verifier.BaseURL = prover
	}
	if mode := os.Getenv("VERIFIER_MODE"); mode != "" {
		cfg.Verifier.Mode = mode
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if secret := os.Getenv("ADMIN_JWT_SECRET"); secret != "" {
		cfg.Admin.JWTSecret = secret
	}
	if totp := os.Getenv("ADMIN_TOTP_SECRET"); totp != "" {
		cfg.Admin.TOTPSecret = totp
	}
	if hash := os.Getenv("ADMIN_PASSWORD_HASH"); hash != "" {
		cfg.Admin.PasswordHash = hash
	}
	if ips := os.Getenv("ADMIN_ALLOWED_IPS"); ips != "" {
		cfg.Admin.AllowedIPs = strings.Split(ips, ",")
	}

	if v := os.Getenv("BRIDGE_ACCOUNT_ID"); v != "" {
		cfg.Bridge.AccountID = v
	}
	if v := os.Getenv("BRIDGE_OWNER_ID"); v != "" {
		cfg.Bridge.OwnerID = v
	}
	if v := os.Getenv("BRIDGE_LOCKER_ADDRESS"); v != "" {
		cfg.Bridge.LockerAddress = v
	}
	if v := os.Getenv("BRIDGE_METADATA_CONNECTOR"); v != "" {
		cfg.Bridge.MetadataConnector = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}

	if c.NATS.Timeout == 0 {
		c.NATS.Timeout = 10
	}
	if c.NATS.ReconnectWait == 0 {
		c.NATS.ReconnectWait = 2
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 60
	}
	s := &c.NATS.Subjects
	if s.InboundProofs == "" {
		s.InboundProofs = "bridge.proofs.inbound"
	}
	if s.MetadataProofs == "" {
		s.MetadataProofs = "bridge.proofs.metadata"
	}
	if s.VerifyRequest == "" {
		s.VerifyRequest = "bridge.verify.request"
	}
	if s.VerifyResult == "" {
		s.VerifyResult = "bridge.verify.result"
	}
	if s.EventsPrefix == "" {
		s.EventsPrefix = "bridge.events"
	}

	b := &c.Bridge
	if b.AccountID == "" {
		b.AccountID = "bridge"
	}
	if b.OwnerID == "" {
		b.OwnerID = b.AccountID
	}
	if b.StorageByteCost == "" {
		b.StorageByteCost = "10000000000000000000" // 1e19 per byte
	}
	if b.BridgeTokenInitBalance == "" {
		b.BridgeTokenInitBalance = "6000000000000000000000000" // 6e24
	}
	if b.TokenStorageDeposit == "" {
		b.TokenStorageDeposit = "10000000000000000000000" // 1e22
	}
	if b.UpdateMetadataDeposit == "" {
		b.UpdateMetadataDeposit = "100000000000000000000000" // 1e23
	}

	v := &c.Verifier
	if v.Mode == "" {
		v.Mode = VerifierModeHTTP
	}
	if v.Timeout == 0 {
		v.Timeout = 30
	}
	if v.RetryAttempts == 0 {
		v.RetryAttempts = 3
	}
	if v.RetryDelayMs == 0 {
		v.RetryDelayMs = 500
	}
	if v.Workers == 0 {
		v.Workers = 4
	}
	if v.RecoveryInterval == 0 {
		v.RecoveryInterval = 30
	}
	if v.StaleAfter == 0 {
		v.StaleAfter = 120
	}

	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "nft-bridge"
	}
	if c.Auth.TokenTTLHours == 0 {
		c.Auth.TokenTTLHours = 24
	}
}

// Validate checks addresses, amounts and the verifier mode.
func (c *Config) Validate() error {
	if _, err := types.DecodeAddress(c.Bridge.LockerAddress); err != nil {
		return fmt.Errorf("bridge.locker_address: %w", err)
	}
	if c.Bridge.MetadataConnector != "" {
		if _, err := types.DecodeAddress(c.Bridge.MetadataConnector); err != nil {
			return fmt.Errorf("bridge.metadata_connector: %w", err)
		}
	}
	if c.Bridge.EmitterAddress != "" {
		if _, err := types.DecodeAddress(c.Bridge.EmitterAddress); err != nil {
			return fmt.Errorf("bridge.emitter_address: %w", err)
		}
	}
	amounts := map[string]string{
		"storage_byte_cost":         c.Bridge.StorageByteCost,
		"bridge_token_init_balance": c.Bridge.BridgeTokenInitBalance,
		"token_storage_deposit":     c.Bridge.TokenStorageDeposit,
		"update_metadata_deposit":   c.Bridge.UpdateMetadataDeposit,
	}
	for name, v := range amounts {
		if _, err := types.ParseAmount(v); err != nil {
			return fmt.Errorf("bridge.%s: %w", name, err)
		}
	}
	switch c.Verifier.Mode {
	case VerifierModeHTTP:
		if c.Verifier.BaseURL == "" {
			return fmt.Errorf("verifier.baseUrl is required in http mode")
		}
	case VerifierModeNATS:
		if !c.NATS.Enabled {
			return fmt.Errorf("verifier.mode nats requires nats.enabled")
		}
	default:
		return fmt.Errorf("unknown verifier.mode %q", c.Verifier.Mode)
	}
	return nil
}
