package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/kysee/anonvote/config"
	"github.com/kysee/anonvote/log"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "anonvote",
	Short:         "anonymous voting on a membership group with zero-knowledge proofs",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if cfg, err = loadConfig(cmd.Flags()); err != nil {
			return err
		}
		return log.Init(cfg.LogLevel, cfg.LogOutput)
	},
}

func init() {
	def := config.Default()
	flags := rootCmd.PersistentFlags()
	flags.String("dataDir", def.DataDir, "directory for the identity store and config file")
	flags.String("passphrase", "", "passphrase sealing the local identity")
	flags.String("logLevel", def.LogLevel, "log level (debug, info, warn, error)")
	flags.String("logOutput", def.LogOutput, "log output (stdout, stderr or a file path)")
	flags.String("rpc", "", "web3 JSON-RPC endpoint")
	flags.String("contract", "", "voting contract address")
	flags.String("privateKey", "", "hex private key signing transactions")
	flags.Uint64("deploymentBlock", def.DeploymentBlock, "block the voting contract was deployed at")
	flags.Uint64("maxBlockRange", def.MaxBlockRange, "largest block span per log query")
	flags.Int("treeDepth", def.TreeDepth, "membership tree depth")
	flags.String("artifacts", "", "directory with the circuit, proving and verifying keys")
	flags.Duration("autoResetDelay", def.AutoResetDelay, "how long a failed vote stays visible")
	flags.String("aiProvider", "", "assistant provider (openrouter, gemini, groq, local)")
	flags.String("aiKey", "", "assistant api key")
	flags.String("aiModel", "", "assistant model")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Errorw(err, "command failed")
		rootCmd.PrintErrln("Error:", err)
		stop()
		os.Exit(1)
	}
}
