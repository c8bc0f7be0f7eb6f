package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultDeploymentBlock = 9_750_000
	DefaultMaxBlockRange   = 9_999
	DefaultTreeDepth       = 20
	DefaultAutoResetDelay  = 2 * time.Second
)

// AIConfig selects the assistant provider used by peripheral tooling.
// It is passed by value wherever it is needed.
type AIConfig struct {
	Provider string
	APIKey   string
	Model    string
}

var aiProviders = map[string]string{
	"openrouter": "openai/gpt-4o-mini",
	"gemini":     "gemini-1.5-flash",
	"groq":       "llama-3.1-8b-instant",
	"local":      "llama3",
}

func (c AIConfig) Validate() error {
	if c.Provider == "" {
		return nil
	}
	if _, ok := aiProviders[c.Provider]; !ok {
		return fmt.Errorf("unknown ai provider %q", c.Provider)
	}
	if c.Provider != "local" && c.APIKey == "" {
		return fmt.Errorf("ai provider %s requires an api key", c.Provider)
	}
	return nil
}

// WithDefaults fills the model from the provider when it is not set.
func (c AIConfig) WithDefaults() AIConfig {
	if c.Model == "" {
		c.Model = aiProviders[c.Provider]
	}
	return c
}

func (c AIConfig) String() string {
	key := ""
	if n := len(c.APIKey); n > 0 {
		if n > 4 {
			key = strings.Repeat("*", n-4) + c.APIKey[n-4:]
		} else {
			key = strings.Repeat("*", n)
		}
	}
	return fmt.Sprintf("provider=%s model=%s apiKey=%s", c.Provider, c.Model, key)
}

type Config struct {
	LogLevel  string
	LogOutput string
	DataDir   string
	// Passphrase seals the local identity record.
	Passphrase string

	RPCURL          string
	ContractAddress string
	PrivateKey      string

	DeploymentBlock uint64
	MaxBlockRange   uint64
	TreeDepth       int
	ArtifactsDir    string
	AutoResetDelay  time.Duration

	AI AIConfig
}

func Default() *Config {
	return &Config{
		LogLevel:        "info",
		LogOutput:       "stderr",
		DataDir:         "~/.anonvote",
		DeploymentBlock: DefaultDeploymentBlock,
		MaxBlockRange:   DefaultMaxBlockRange,
		TreeDepth:       DefaultTreeDepth,
		AutoResetDelay:  DefaultAutoResetDelay,
	}
}

func (c *Config) Validate() error {
	if c.TreeDepth <= 0 || c.TreeDepth > 32 {
		return fmt.Errorf("tree depth must be in [1, 32], got %d", c.TreeDepth)
	}
	if c.MaxBlockRange == 0 {
		return errors.New("max block range must be positive")
	}
	if c.ContractAddress != "" && !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("invalid contract address %q", c.ContractAddress)
	}
	if c.AutoResetDelay < 0 {
		return errors.New("auto reset delay cannot be negative")
	}
	return c.AI.Validate()
}

// RequireLedger checks the settings needed to talk to a deployed contract.
func (c *Config) RequireLedger() error {
	if c.RPCURL == "" {
		return errors.New("rpc url is not set")
	}
	if c.ContractAddress == "" {
		return errors.New("contract address is not set")
	}
	return nil
}
