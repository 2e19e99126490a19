package params

import (
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Engine struct {
	FeeBps       int64  // platform fee in basis points
	MaxFeeBps    int64  // upper bound SetFeeBps will accept
	FeeRecipient string // hex address receiving the platform cut
	Admin        string // hex address granted the manager capability at boot
	Custody      string // hex address of the engine's escrow custody account
	DataDir      string // pebble databases live under here
}

type API struct {
	Addr    string // listen address for REST/WebSocket
	LogFile string // node log path
}

type Config struct {
	Engine Engine
	API    API
}

func Default() Config {
	return Config{
		Engine: Engine{
			FeeBps:       100,  // 1%
			MaxFeeBps:    1000, // 10% hard cap
			FeeRecipient: "",
			Admin:        "",
			Custody:      "0x00000000000000000000000000000000C0D750DE",
			DataDir:      "data",
		},
		API: API{
			Addr:    ":8080",
			LogFile: "data/node.log",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment
// variables. Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("FEE_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Engine.FeeBps = bps
		}
	}
	if v := os.Getenv("MAX_FEE_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Engine.MaxFeeBps = bps
		}
	}
	cfg.Engine.FeeRecipient = getEnv("FEE_RECIPIENT", cfg.Engine.FeeRecipient)
	cfg.Engine.Admin = getEnv("ADMIN_ADDRESS", cfg.Engine.Admin)
	cfg.Engine.Custody = getEnv("CUSTODY_ADDRESS", cfg.Engine.Custody)
	cfg.Engine.DataDir = getEnv("DATA_DIR", cfg.Engine.DataDir)
	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	cfg.API.LogFile = getEnv("LOG_FILE", cfg.API.LogFile)

	return cfg
}

// FeeRecipientAddress parses the configured fee recipient, zero if unset
func (e Engine) FeeRecipientAddress() common.Address {
	if e.FeeRecipient == "" {
		return common.Address{}
	}
	return common.HexToAddress(e.FeeRecipient)
}

// AdminAddress parses the configured admin, zero if unset
func (e Engine) AdminAddress() common.Address {
	if e.Admin == "" {
		return common.Address{}
	}
	return common.HexToAddress(e.Admin)
}

// CustodyAddress parses the custody account
func (e Engine) CustodyAddress() common.Address {
	return common.HexToAddress(e.Custody)
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
