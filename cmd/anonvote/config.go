package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kysee/anonvote/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// loadConfig merges flags, ANONVOTE_* environment variables and
// an optional anonvote.yml in the data dir, in that order of precedence.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	v := viper.New()
	v.SetConfigName("anonvote")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ANONVOTE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}

	dataDir, err := expandHome(v.GetString("dataDir"))
	if err != nil {
		return nil, err
	}
	v.AddConfigPath(dataDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
	}

	c := &config.Config{
		LogLevel:        v.GetString("logLevel"),
		LogOutput:       v.GetString("logOutput"),
		DataDir:         dataDir,
		Passphrase:      v.GetString("passphrase"),
		RPCURL:          v.GetString("rpc"),
		ContractAddress: v.GetString("contract"),
		PrivateKey:      strings.TrimPrefix(v.GetString("privateKey"), "0x"),
		DeploymentBlock: v.GetUint64("deploymentBlock"),
		MaxBlockRange:   v.GetUint64("maxBlockRange"),
		TreeDepth:       v.GetInt("treeDepth"),
		ArtifactsDir:    v.GetString("artifacts"),
		AutoResetDelay:  v.GetDuration("autoResetDelay"),
		AI: config.AIConfig{
			Provider: v.GetString("aiProvider"),
			APIKey:   v.GetString("aiKey"),
			Model:    v.GetString("aiModel"),
		}.WithDefaults(),
	}
	if c.ArtifactsDir == "" {
		c.ArtifactsDir = filepath.Join(dataDir, "artifacts")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dataDir:         %s\n", cfg.DataDir)
		fmt.Fprintf(out, "artifacts:       %s\n", cfg.ArtifactsDir)
		fmt.Fprintf(out, "logLevel:        %s (%s)\n", cfg.LogLevel, cfg.LogOutput)
		fmt.Fprintf(out, "rpc:             %s\n", cfg.RPCURL)
		fmt.Fprintf(out, "contract:        %s\n", cfg.ContractAddress)
		fmt.Fprintf(out, "signer:          %v\n", cfg.PrivateKey != "")
		fmt.Fprintf(out, "deploymentBlock: %d\n", cfg.DeploymentBlock)
		fmt.Fprintf(out, "maxBlockRange:   %d\n", cfg.MaxBlockRange)
		fmt.Fprintf(out, "treeDepth:       %d\n", cfg.TreeDepth)
		fmt.Fprintf(out, "autoResetDelay:  %s\n", cfg.AutoResetDelay)
		fmt.Fprintf(out, "ai:              %s\n", cfg.AI)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
