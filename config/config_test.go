package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.EqualValues(t, 9_750_000, cfg.DeploymentBlock)
	require.EqualValues(t, 9_999, cfg.MaxBlockRange)
	require.Equal(t, 20, cfg.TreeDepth)
	require.Error(t, cfg.RequireLedger())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.TreeDepth = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ContractAddress = "0xnot-an-address"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	cfg.RPCURL = "http://127.0.0.1:8545"
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.RequireLedger())
}

func TestAIConfig(t *testing.T) {
	require.NoError(t, AIConfig{}.Validate())
	require.NoError(t, AIConfig{Provider: "local"}.Validate())
	require.Error(t, AIConfig{Provider: "groq"}.Validate())
	require.ErrorContains(t, AIConfig{Provider: "someone"}.Validate(), "unknown ai provider")

	c := AIConfig{Provider: "gemini", APIKey: "secret-key-1234"}.WithDefaults()
	require.Equal(t, "gemini-1.5-flash", c.Model)
	require.NotContains(t, c.String(), "secret")
	require.Contains(t, c.String(), "1234")
}
