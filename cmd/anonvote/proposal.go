package main

import (
	"fmt"
	"math/big"
	"text/tabwriter"

	"github.com/kysee/anonvote/zk-vote/members"
	"github.com/kysee/anonvote/zk-vote/status"
	"github.com/kysee/anonvote/zk-vote/types"
	"github.com/spf13/cobra"
)

var proposalCmd = &cobra.Command{
	Use:   "proposal <id>",
	Short: "show a proposal, its options and vote counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		cli, voting, err := dialLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer cli.Close()

		pc, err := voting.ProposalContext(cmd.Context(), pid)
		if err != nil {
			return err
		}
		opts, err := voting.Options(cmd.Context(), pid)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "#%d %s (active: %v)\n", pc.ProposalID, pc.Title, pc.IsActive)
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tOPTION\tVOTES")
		for _, o := range opts {
			fmt.Fprintf(w, "%d\t%s\t%s\n", o.ID, o.Name, o.VoteCount.Dec())
		}
		return w.Flush()
	},
}

var membersCount bool

var membersCmd = &cobra.Command{
	Use:   "members <id>",
	Short: "list the identity commitments that joined a proposal, in join order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		cli, voting, err := dialLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer cli.Close()

		f := members.NewFetcher(voting, cfg.DeploymentBlock, cfg.MaxBlockRange)
		out := cmd.OutOrStdout()
		if membersCount {
			n, err := f.Count(cmd.Context(), pid)
			fmt.Fprintln(out, n)
			return err
		}

		ms, err := f.FetchMembers(cmd.Context(), pid)
		for _, m := range ms {
			fmt.Fprintf(out, "%d:%d\t%s\n", m.BlockNumber, m.LogIndex, m.Commitment)
		}
		if acc, ok := cli.Account(); ok && err == nil {
			commitments := make([]*big.Int, len(ms))
			for i, m := range ms {
				commitments[i] = m.Commitment
			}
			err = f.Reconcile(cmd.Context(), pid, acc, commitments)
		}
		return err
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "check whether the signing account has joined a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		cli, voting, err := dialLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer cli.Close()

		acc, ok := cli.Account()
		if !ok {
			return types.ErrWalletNotConnected
		}
		joined, err := status.NewChecker(voting).HasJoined(cmd.Context(), pid, acc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s joined proposal %d: %v\n", acc.Hex(), pid, joined)
		return nil
	},
}

func init() {
	membersCmd.Flags().BoolVar(&membersCount, "count", false, "only count the members")
	rootCmd.AddCommand(proposalCmd, membersCmd, statusCmd)
}
