package web3

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/kysee/anonvote/log"
	"github.com/kysee/anonvote/zk-vote/contract"
	"github.com/kysee/anonvote/zk-vote/types"
)

const (
	// DefaultMaxClientRetries is the number of dial attempts before giving up.
	DefaultMaxClientRetries = 5
	dialTimeout             = 10 * time.Second
)

// Client is a LedgerClient for an EVM chain reached over JSON-RPC.
// It only knows the voting contract's ABI.
type Client struct {
	cli     *ethclient.Client
	chainID *big.Int
	abi     abi.ABI

	privKey *ecdsa.PrivateKey
	address common.Address

	mu    sync.Mutex
	bound map[common.Address]*bind.BoundContract
}

var (
	_ types.LedgerClient  = (*Client)(nil)
	_ types.WalletSession = (*Client)(nil)
)

// Dial connects to uri and resolves the chain id.
func Dial(ctx context.Context, uri string) (*Client, error) {
	parsed, err := contract.ParsedABI()
	if err != nil {
		return nil, err
	}
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	cli, err := connect(dctx, uri)
	if err != nil {
		return nil, err
	}
	chainID, err := cli.ChainID(dctx)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("error getting the chainID from the web3 provider '%s': %w", uri, err)
	}
	log.Infow("web3 endpoint connected", "chainID", chainID.Uint64())
	return &Client{
		cli:     cli,
		chainID: chainID,
		abi:     parsed,
		bound:   make(map[common.Address]*bind.BoundContract),
	}, nil
}

func connect(ctx context.Context, uri string) (client *ethclient.Client, err error) {
	for i := 0; i < DefaultMaxClientRetries; i++ {
		if client, err = ethclient.DialContext(ctx, uri); err != nil {
			continue
		}
		return
	}
	return nil, fmt.Errorf("error dialing web3 provider uri '%s': %w", uri, err)
}

func (c *Client) Close() {
	c.cli.Close()
}

// SetAccountPrivateKey sets the key that signs transactions.
func (c *Client) SetAccountPrivateKey(hexPrivKey string) error {
	key, err := crypto.HexToECDSA(hexPrivKey)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.privKey = key
	c.address = crypto.PubkeyToAddress(key.PublicKey)
	return nil
}

// Account is the signing account; false until a private key is set.
func (c *Client) Account() (common.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address, c.privKey != nil
}

func (c *Client) boundContract(addr common.Address) *bind.BoundContract {
	c.mu.Lock()
	defer c.mu.Unlock()
	bc, ok := c.bound[addr]
	if !ok {
		bc = bind.NewBoundContract(addr, c.abi, c.cli, c.cli, c.cli)
		c.bound[addr] = bc
	}
	return bc
}

func (c *Client) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	return c.cli.BlockNumber(ctx)
}

func (c *Client) ReadState(ctx context.Context, addr common.Address, method string, args ...any) ([]any, error) {
	var out []any
	if err := c.boundContract(addr).Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitTransaction signs, sends and waits for the transaction to be mined.
// A reverted transaction is an error.
func (c *Client) SubmitTransaction(ctx context.Context, addr common.Address, method string, gasHint uint64, args ...any) (common.Hash, error) {
	opts, err := c.authTransactOpts(ctx, gasHint)
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := c.boundContract(addr).Transact(opts, method, args...)
	if err != nil {
		return common.Hash{}, err
	}
	log.Debugw("transaction sent", "method", method, "tx", tx.Hash().Hex(), "nonce", tx.Nonce())

	receipt, err := bind.WaitMined(ctx, c.cli, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return tx.Hash(), fmt.Errorf("transaction %s reverted in block %d", tx.Hash().Hex(), receipt.BlockNumber)
	}
	return tx.Hash(), nil
}

// authTransactOpts creates transact options signed by the configured key,
// with the pending nonce and the suggested tip cap. A zero gasHint lets the
// backend estimate the gas limit.
func (c *Client) authTransactOpts(ctx context.Context, gasHint uint64) (*bind.TransactOpts, error) {
	c.mu.Lock()
	key, address := c.privKey, c.address
	c.mu.Unlock()
	if key == nil {
		return nil, errors.New("no private key set")
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx

	nonce, err := c.cli.PendingNonceAt(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)
	if auth.GasTipCap, err = c.cli.SuggestGasTipCap(ctx); err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	auth.GasLimit = gasHint
	return auth, nil
}

func (c *Client) QueryEventLogs(ctx context.Context, q types.EventQuery) ([]types.EventLog, error) {
	ev, ok := c.abi.Events[q.Event]
	if !ok {
		return nil, fmt.Errorf("unknown event %s", q.Event)
	}
	logs, err := c.cli.FilterLogs(ctx, filterQuery(q, ev.ID))
	if err != nil {
		return nil, err
	}
	ret := make([]types.EventLog, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ret = append(ret, fromLog(l))
	}
	return ret, nil
}

func filterQuery(q types.EventQuery, topic0 common.Hash) ethereum.FilterQuery {
	topics := make([][]common.Hash, 0, len(q.Topics)+1)
	topics = append(topics, []common.Hash{topic0})
	topics = append(topics, q.Topics...)
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(q.FromBlock),
		ToBlock:   new(big.Int).SetUint64(q.ToBlock),
		Addresses: []common.Address{q.Contract},
		Topics:    topics,
	}
}

func fromLog(l ethtypes.Log) types.EventLog {
	return types.EventLog{
		BlockNumber: l.BlockNumber,
		LogIndex:    l.Index,
		TxHash:      l.TxHash,
		Topics:      append([]common.Hash(nil), l.Topics...),
		Data:        append([]byte(nil), l.Data...),
	}
}
