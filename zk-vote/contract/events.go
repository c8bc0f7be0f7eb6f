package contract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/anonvote/zk-vote/types"
)

// MemberJoined is a decoded MemberJoined(proposalId, groupId, identityCommitment) log.
type MemberJoined struct {
	ProposalID  *big.Int
	GroupID     *big.Int
	Commitment  *big.Int
	BlockNumber uint64
	LogIndex    uint
	TxHash      common.Hash
}

// MemberJoinedQuery filters MemberJoined logs by the indexed proposal id.
func MemberJoinedQuery(address common.Address, proposalID, from, to uint64) types.EventQuery {
	return types.EventQuery{
		Contract:  address,
		Event:     EventMemberJoined,
		Topics:    [][]common.Hash{{common.BigToHash(new(big.Int).SetUint64(proposalID))}},
		FromBlock: from,
		ToBlock:   to,
	}
}

// MemberJoinedTopic is the event id, topic 0 of every MemberJoined log.
func MemberJoinedTopic() (common.Hash, error) {
	parsed, err := ParsedABI()
	if err != nil {
		return common.Hash{}, err
	}
	return parsed.Events[EventMemberJoined].ID, nil
}

func DecodeMemberJoined(l types.EventLog) (*MemberJoined, error) {
	if len(l.Topics) != 3 {
		return nil, fmt.Errorf("MemberJoined log at block %d index %d: expected 3 topics, got %d",
			l.BlockNumber, l.LogIndex, len(l.Topics))
	}
	if len(l.Data) != 32 {
		return nil, fmt.Errorf("MemberJoined log at block %d index %d: expected 32 bytes of data, got %d",
			l.BlockNumber, l.LogIndex, len(l.Data))
	}
	return &MemberJoined{
		ProposalID:  l.Topics[1].Big(),
		GroupID:     l.Topics[2].Big(),
		Commitment:  new(big.Int).SetBytes(l.Data),
		BlockNumber: l.BlockNumber,
		LogIndex:    l.LogIndex,
		TxHash:      l.TxHash,
	}, nil
}

// EncodeMemberJoined builds the raw log a MemberJoined emission produces.
func EncodeMemberJoined(ev *MemberJoined) (types.EventLog, error) {
	topic0, err := MemberJoinedTopic()
	if err != nil {
		return types.EventLog{}, err
	}
	return types.EventLog{
		BlockNumber: ev.BlockNumber,
		LogIndex:    ev.LogIndex,
		TxHash:      ev.TxHash,
		Topics:      []common.Hash{topic0, common.BigToHash(ev.ProposalID), common.BigToHash(ev.GroupID)},
		Data:        common.LeftPadBytes(ev.Commitment.Bytes(), 32),
	}, nil
}
