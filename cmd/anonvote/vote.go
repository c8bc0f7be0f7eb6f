package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kysee/anonvote/zk-vote/flow"
	"github.com/kysee/anonvote/zk-vote/members"
	"github.com/kysee/anonvote/zk-vote/status"
	"github.com/kysee/anonvote/zk-vote/types"
	"github.com/spf13/cobra"
)

var (
	voteOption   int
	voteJoinOnly bool
)

var voteCmd = &cobra.Command{
	Use:   "vote <id>",
	Short: "join a proposal if needed and cast an anonymous vote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		cli, voting, err := dialLedger(ctx)
		if err != nil {
			return err
		}
		defer cli.Close()

		manager, store, err := openIdentity()
		if err != nil {
			return err
		}
		defer store.Close()

		requiresJoin, err := status.NewChecker(voting).RequiresJoin(ctx, pid, cli)
		if err != nil {
			return err
		}

		params := flow.StartParams{ProposalID: pid, RequiresJoin: requiresJoin, Mode: flow.ModeFull}
		var prover types.ProofCircuit
		if voteJoinOnly {
			params.Mode = flow.ModeJoinOnly
		} else {
			// without an option the run fails validation before any proving
			if cmd.Flags().Changed("option") {
				params.OptionID = &voteOption
				ps, err := loadProvingSystem()
				if err != nil {
					return err
				}
				prover = ps
			}
		}

		orch := flow.New(
			manager,
			members.NewFetcher(voting, cfg.DeploymentBlock, cfg.MaxBlockRange),
			voting,
			prover,
			cli,
			flow.Config{TreeDepth: cfg.TreeDepth, AutoResetDelay: cfg.AutoResetDelay},
		)
		return runFlow(ctx, cmd.OutOrStdout(), orch, params)
	},
}

// runFlow starts a run, prints its progress and waits for the outcome.
func runFlow(ctx context.Context, out io.Writer, orch *flow.Orchestrator, params flow.StartParams) error {
	var (
		mu   sync.Mutex
		last flow.StepID
	)
	orch.Subscribe(func(s flow.FlowState) {
		step, ok := s.Step()
		if !ok || s.Status != flow.StatusRunning {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if step.ID != last {
			last = step.ID
			fmt.Fprintf(out, "[%d/%d] %s...\n", s.CurrentStep+1, len(s.Steps), step.Label)
		}
	})

	if err := orch.Start(ctx, params); err != nil {
		return err
	}
	st, err := orch.Wait(ctx)
	if err != nil {
		return err
	}
	if st.Status != flow.StatusSuccess {
		return fmt.Errorf("%s failed: %w", st.FailedStep, st.Err)
	}
	if st.TxHashes.Join != nil {
		fmt.Fprintf(out, "join tx: %s\n", st.TxHashes.Join.Hex())
	}
	if st.TxHashes.Vote != nil {
		fmt.Fprintf(out, "vote tx: %s\n", st.TxHashes.Vote.Hex())
	}
	return nil
}

func init() {
	voteCmd.Flags().IntVar(&voteOption, "option", 0, "option index to vote for")
	voteCmd.Flags().BoolVar(&voteJoinOnly, "join-only", false, "only join the voter group")
	rootCmd.AddCommand(voteCmd)
}
