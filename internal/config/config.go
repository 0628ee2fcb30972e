// Package config loads the bridge daemon's configuration from the
// environment, with an optional JSON chains file validated against a
// schema.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/xeipuuv/gojsonschema"
)

// Config holds all daemon settings.
type Config struct {
	// Server settings
	Port        int
	Environment string

	// EVM chain settings
	EVMRPC                  string
	EVMMnemonic             string
	EVMAccountIndex         int
	EVMInitiatorContract    string
	EVMCounterpartyContract string

	// Solana chain settings
	SolanaRPC           string
	SolanaWS            string
	SolanaPrivateKey    string
	SolanaBridgeProgram string

	// Journal settings; an empty RedisURL keeps the journal in memory.
	RedisURL string

	// ChainsFile optionally points at a JSON document describing the
	// chain deployments, validated by LoadChainsFile.
	ChainsFile string
}

// Load reads configuration from the environment, after loading .env if
// present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: getEnv("ENVIRONMENT", "development"),

		EVMRPC:                  getEnv("EVM_RPC", "ws://localhost:8546"),
		EVMMnemonic:             getEnv("EVM_MNEMONIC", ""),
		EVMAccountIndex:         getEnvInt("EVM_ACCOUNT_INDEX", 0),
		EVMInitiatorContract:    getEnv("EVM_INITIATOR_CONTRACT", ""),
		EVMCounterpartyContract: getEnv("EVM_COUNTERPARTY_CONTRACT", ""),

		SolanaRPC:           getEnv("SOLANA_RPC", "http://localhost:8899"),
		SolanaWS:            getEnv("SOLANA_WS", "ws://localhost:8900"),
		SolanaPrivateKey:    getEnv("SOLANA_PRIVATE_KEY", ""),
		SolanaBridgeProgram: getEnv("SOLANA_BRIDGE_PROGRAM", ""),

		RedisURL: getEnv("REDIS_URL", ""),

		ChainsFile: getEnv("CHAINS_FILE", ""),
	}
}

// Validate checks that the settings required to reach both chains are
// present.
func (c *Config) Validate() error {
	if c.EVMMnemonic == "" {
		return fmt.Errorf("EVM_MNEMONIC is required")
	}
	if c.EVMInitiatorContract == "" || c.EVMCounterpartyContract == "" {
		return fmt.Errorf("EVM_INITIATOR_CONTRACT and EVM_COUNTERPARTY_CONTRACT are required")
	}
	if c.SolanaPrivateKey == "" {
		return fmt.Errorf("SOLANA_PRIVATE_KEY is required")
	}
	if c.SolanaBridgeProgram == "" {
		return fmt.Errorf("SOLANA_BRIDGE_PROGRAM is required")
	}
	return nil
}

// ChainEntry describes one chain deployment in the chains file.
type ChainEntry struct {
	Name        string `json:"name"`
	NetworkType string `json:"networkType"`
	RPCURL      string `json:"rpcUrl"`
	WSURL       string `json:"wsUrl,omitempty"`
}

// chainsSchema constrains the chains file to the entries the daemon
// understands.
const chainsSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["name", "networkType", "rpcUrl"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"networkType": {"type": "string", "enum": ["evm", "solana"]},
			"rpcUrl": {"type": "string", "minLength": 1},
			"wsUrl": {"type": "string"}
		},
		"additionalProperties": false
	}
}`

// LoadChainsFile reads and validates the chains file.
func LoadChainsFile(path string) ([]ChainEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chains file: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(chainsSchema),
		gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate chains file: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("invalid chains file: %v", result.Errors())
	}

	var entries []ChainEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse chains file: %w", err)
	}
	return entries, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
