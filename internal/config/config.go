package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	RecordStoreMemory   = "memory"
	RecordStorePostgres = "postgres"

	MedicationSourceRemote   = "remote"
	MedicationSourceFixture  = "fixture"
	MedicationSourcePostgres = "postgres"
)

// HederaNetworks are the network names hospital registration can target.
var HederaNetworks = []string{"testnet", "previewnet", "mainnet"}

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	APIURL           string        `mapstructure:"MEDCHAIN_API_URL"`
	StateDir         string        `mapstructure:"MEDCHAIN_STATE_DIR"`
	GatewayTimeout   time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	SimulatedLatency time.Duration `mapstructure:"SIMULATED_LATENCY"`
	CurrentHospital  string        `mapstructure:"CURRENT_HOSPITAL"`
	MedicationSource string        `mapstructure:"MEDICATION_SOURCE"`
	RecordStore      string        `mapstructure:"RECORD_STORE"`
	SeedFixtures     bool          `mapstructure:"SEED_FIXTURES"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	BodyLimit        string        `mapstructure:"BODY_LIMIT"`
	HederaNetwork    string        `mapstructure:"HEDERA_NETWORK"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("MEDCHAIN_STATE_DIR", ".medchain")
	v.SetDefault("GATEWAY_TIMEOUT", "0s")
	v.SetDefault("SIMULATED_LATENCY", "1s")
	v.SetDefault("CURRENT_HOSPITAL", "Hôpital Actuel (Simulé)")
	v.SetDefault("MEDICATION_SOURCE", MedicationSourceRemote)
	v.SetDefault("RECORD_STORE", RecordStoreMemory)
	v.SetDefault("SEED_FIXTURES", true)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,capacitor://localhost")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("HEDERA_NETWORK", "testnet")

	for _, key := range []string{
		"PORT", "ENV", "MEDCHAIN_API_URL", "MEDCHAIN_STATE_DIR",
		"GATEWAY_TIMEOUT", "SIMULATED_LATENCY", "CURRENT_HOSPITAL",
		"MEDICATION_SOURCE", "RECORD_STORE", "SEED_FIXTURES",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
		"BODY_LIMIT", "HEDERA_NETWORK",
	} {
		_ = v.BindEnv(key)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil || (len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",")) {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")

	if cfg.APIURL == "" {
		return nil, fmt.Errorf("MEDCHAIN_API_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// UsesDatabase reports whether any store is backed by PostgreSQL.
func (c *Config) UsesDatabase() bool {
	return c.RecordStore == RecordStorePostgres || c.MedicationSource == MedicationSourcePostgres
}

// Validate checks the values Load cannot default on its own.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("MEDCHAIN_API_URL must be an absolute http(s) URL, got %q", c.APIURL)
	}
	if c.RecordStore != RecordStoreMemory && c.RecordStore != RecordStorePostgres {
		return fmt.Errorf("RECORD_STORE must be %q or %q, got %q", RecordStoreMemory, RecordStorePostgres, c.RecordStore)
	}
	switch c.MedicationSource {
	case MedicationSourceRemote, MedicationSourceFixture, MedicationSourcePostgres:
	default:
		return fmt.Errorf("MEDICATION_SOURCE must be %q, %q or %q, got %q",
			MedicationSourceRemote, MedicationSourceFixture, MedicationSourcePostgres, c.MedicationSource)
	}
	if c.UsesDatabase() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when RECORD_STORE or MEDICATION_SOURCE is %q", RecordStorePostgres)
	}
	if c.GatewayTimeout < 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must not be negative")
	}
	if c.SimulatedLatency < 0 {
		return fmt.Errorf("SIMULATED_LATENCY must not be negative")
	}
	if c.StateDir == "" {
		return fmt.Errorf("MEDCHAIN_STATE_DIR must not be empty")
	}
	if !slices.Contains(HederaNetworks, c.HederaNetwork) {
		return fmt.Errorf("HEDERA_NETWORK must be one of %s, got %q", strings.Join(HederaNetworks, ", "), c.HederaNetwork)
	}
	return nil
}
