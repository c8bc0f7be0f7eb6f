package types

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// EventLog is one raw log entry as returned by the ledger.
type EventLog struct {
	BlockNumber uint64
	LogIndex    uint
	TxHash      common.Hash
	Topics      []common.Hash
	Data        []byte
}

// EventQuery selects logs of one event of one contract in [FromBlock, ToBlock].
// Topics filter the indexed arguments following the event id; a nil entry matches anything.
type EventQuery struct {
	Contract  common.Address
	Event     string
	Topics    [][]common.Hash
	FromBlock uint64
	ToBlock   uint64
}

// LedgerClient is the black-box chain capability the voting engine consumes.
// Call encoding is the client's concern; methods are addressed by name.
type LedgerClient interface {
	ReadState(ctx context.Context, contract common.Address, method string, args ...any) ([]any, error)
	SubmitTransaction(ctx context.Context, contract common.Address, method string, gasHint uint64, args ...any) (common.Hash, error)
	QueryEventLogs(ctx context.Context, q EventQuery) ([]EventLog, error)
	CurrentBlockHeight(ctx context.Context) (uint64, error)
}

// WalletSession reports the connected account, if any.
type WalletSession interface {
	Account() (common.Address, bool)
}
