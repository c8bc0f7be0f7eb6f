package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kysee/anonvote/log"
	"github.com/kysee/anonvote/zk-vote/vote"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "compile the vote circuit, run a development trusted setup and write the Solidity verifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(cfg.ArtifactsDir, 0o755); err != nil {
			return err
		}
		log.Infow("compiling vote circuit", "depth", cfg.TreeDepth)
		ps, err := vote.Setup(cfg.TreeDepth)
		if err != nil {
			return err
		}
		if err := ps.SaveArtifacts(cfg.ArtifactsDir); err != nil {
			return err
		}

		solPath := filepath.Join(cfg.ArtifactsDir, fmt.Sprintf("VoteVerifier-d%d.sol", cfg.TreeDepth))
		f, err := os.Create(solPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := ps.ExportSolidity(f); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "constraints: %d\nartifacts:   %s\nverifier:    %s\n",
			ps.CCS.GetNbConstraints(), cfg.ArtifactsDir, solPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
