package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/anonvote/zk-vote/contract"
	"github.com/kysee/anonvote/zk-vote/identity"
	"github.com/kysee/anonvote/zk-vote/vote"
	"github.com/kysee/anonvote/zk-vote/web3"
)

// openIdentity opens the local identity store. The caller closes the store.
func openIdentity() (*identity.Manager, *identity.PebbleStore, error) {
	dir := filepath.Join(cfg.DataDir, "identity")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, err
	}
	store, err := identity.OpenPebble(dir, nil)
	if err != nil {
		return nil, nil, err
	}
	return identity.NewManager(store, cfg.Passphrase), store, nil
}

func loadProvingSystem() (*vote.ProvingSystem, error) {
	return vote.LoadArtifacts(cfg.ArtifactsDir, cfg.TreeDepth)
}

// dialLedger connects to the configured chain and binds the voting contract.
func dialLedger(ctx context.Context) (*web3.Client, *contract.Voting, error) {
	if err := cfg.RequireLedger(); err != nil {
		return nil, nil, err
	}
	cli, err := web3.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.PrivateKey != "" {
		if err := cli.SetAccountPrivateKey(cfg.PrivateKey); err != nil {
			cli.Close()
			return nil, nil, err
		}
	}
	return cli, contract.NewVoting(cli, common.HexToAddress(cfg.ContractAddress)), nil
}

func parseProposalID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid proposal id %q", s)
	}
	return id, nil
}
