package contract

import (
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	MethodGetProposalInfo       = "getProposalInfo"
	MethodGetOptions            = "getOptions"
	MethodGetUserGroupID        = "getUserGroupId"
	MethodGetUserMerkleTreeRoot = "getUserMerkleTreeRoot"
	MethodGetUserMerkleTreeDep  = "getUserMerkleTreeDepth"
	MethodGetUserMerkleTreeSize = "getUserMerkleTreeSize"
	MethodJoinProposal          = "joinProposal"
	MethodVote                  = "vote"

	EventMemberJoined = "MemberJoined"
)

// VotingABI is the subset of the voting contract the engine calls.
const VotingABI = `[
  {"type":"function","name":"getProposalInfo","stateMutability":"view",
   "inputs":[{"name":"proposalId","type":"uint256"}],
   "outputs":[{"name":"id","type":"uint256"},{"name":"title","type":"string"},{"name":"groupId","type":"uint256"},
              {"name":"optionCount","type":"uint256"},{"name":"createdAt","type":"uint256"},{"name":"isActive","type":"bool"}]},
  {"type":"function","name":"getOptions","stateMutability":"view",
   "inputs":[{"name":"proposalId","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple[]","components":[
      {"name":"id","type":"uint256"},{"name":"name","type":"string"},{"name":"voteCount","type":"uint256"}]}]},
  {"type":"function","name":"getUserGroupId","stateMutability":"view",
   "inputs":[{"name":"proposalId","type":"uint256"},{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getUserMerkleTreeRoot","stateMutability":"view",
   "inputs":[{"name":"proposalId","type":"uint256"},{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getUserMerkleTreeDepth","stateMutability":"view",
   "inputs":[{"name":"proposalId","type":"uint256"},{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getUserMerkleTreeSize","stateMutability":"view",
   "inputs":[{"name":"proposalId","type":"uint256"},{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"joinProposal","stateMutability":"nonpayable",
   "inputs":[{"name":"proposalId","type":"uint256"},{"name":"identityCommitment","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"vote","stateMutability":"nonpayable",
   "inputs":[{"name":"proposalId","type":"uint256"},{"name":"optionId","type":"uint256"},
             {"name":"merkleTreeDepth","type":"uint256"},{"name":"merkleTreeRoot","type":"uint256"},
             {"name":"nullifier","type":"uint256"},{"name":"points","type":"uint256[8]"}],
   "outputs":[]},
  {"type":"event","name":"MemberJoined","anonymous":false,
   "inputs":[{"name":"proposalId","type":"uint256","indexed":true},{"name":"groupId","type":"uint256","indexed":true},
             {"name":"identityCommitment","type":"uint256","indexed":false}]}
]`

var (
	parsedOnce sync.Once
	parsedABI  abi.ABI
	parsedErr  error
)

// ParsedABI returns VotingABI parsed once per process.
func ParsedABI() (abi.ABI, error) {
	parsedOnce.Do(func() {
		parsedABI, parsedErr = abi.JSON(strings.NewReader(VotingABI))
	})
	return parsedABI, parsedErr
}

// OptionTuple mirrors the tuple returned by getOptions.
type OptionTuple struct {
	Id        *big.Int `json:"id"`
	Name      string   `json:"name"`
	VoteCount *big.Int `json:"voteCount"`
}
