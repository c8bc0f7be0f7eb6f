package main

import (
	"fmt"
	"math/big"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/anonvote/log"
	"github.com/kysee/anonvote/zk-vote/contract"
	"github.com/kysee/anonvote/zk-vote/flow"
	"github.com/kysee/anonvote/zk-vote/identity"
	"github.com/kysee/anonvote/zk-vote/members"
	"github.com/kysee/anonvote/zk-vote/node"
	"github.com/kysee/anonvote/zk-vote/status"
	"github.com/kysee/anonvote/zk-vote/vote"
	"github.com/spf13/cobra"
)

var (
	simDepth   int
	simVoters  int
	simOption  int
	simOptions []string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "run a complete join-and-vote flow against an in-memory ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		log.Infow("compiling vote circuit", "depth", simDepth)
		ps, err := vote.Setup(simDepth)
		if err != nil {
			return err
		}

		contractAddr := common.HexToAddress("0x00000000000000000000000000000000000c0de1")
		user := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
		ledger := node.NewLedger(contractAddr, simDepth, ps,
			node.WithAccount(user),
			node.WithHeight(cfg.DeploymentBlock),
			node.WithMaxRange(cfg.MaxBlockRange),
		)
		pid, err := ledger.CreateProposal("Simulated proposal", simOptions)
		if err != nil {
			return err
		}

		for i := 0; i < simVoters; i++ {
			other, err := identity.New()
			if err != nil {
				return err
			}
			if _, err := ledger.JoinAs(common.BigToAddress(big.NewInt(int64(i+1))), pid, other.Commitment()); err != nil {
				return err
			}
		}
		// spread the joins over several log query windows
		ledger.Mine(cfg.MaxBlockRange * 2)

		store, err := identity.OpenPebble("identity", vfs.NewMem())
		if err != nil {
			return err
		}
		defer store.Close()
		manager := identity.NewManager(store, cfg.Passphrase)

		voting := contract.NewVoting(ledger, contractAddr)
		requiresJoin, err := status.NewChecker(voting).RequiresJoin(ctx, pid, ledger)
		if err != nil {
			return err
		}

		orch := flow.New(
			manager,
			members.NewFetcher(voting, cfg.DeploymentBlock, cfg.MaxBlockRange),
			voting,
			ps,
			ledger,
			flow.Config{TreeDepth: simDepth, AutoResetDelay: cfg.AutoResetDelay},
		)
		err = runFlow(ctx, out, orch, flow.StartParams{
			ProposalID:   pid,
			OptionID:     &simOption,
			Mode:         flow.ModeFull,
			RequiresJoin: requiresJoin,
		})
		if err != nil {
			return err
		}

		tally, err := ledger.Tally(pid)
		if err != nil {
			return err
		}
		for i, c := range tally {
			fmt.Fprintf(out, "%-12s %s\n", simOptions[i], c.Dec())
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simDepth, "depth", 10, "membership tree depth of the simulated group")
	simulateCmd.Flags().IntVar(&simVoters, "voters", 8, "other members joining before the user")
	simulateCmd.Flags().IntVar(&simOption, "option", 0, "option index the user votes for")
	simulateCmd.Flags().StringSliceVar(&simOptions, "options", []string{"Yes", "No"}, "proposal options")
	rootCmd.AddCommand(simulateCmd)
}
