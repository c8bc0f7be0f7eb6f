package members

import (
	"context"

	"github.com/kysee/anonvote/zk-vote/types"
)

// Batch is the result of one sub-range query. Err is set when the query failed;
// Logs is empty in that case.
type Batch struct {
	Range types.BlockRange
	Logs  []types.EventLog
	Err   error
}

// QueryFunc builds the log query for one inclusive sub-range.
type QueryFunc func(from, to uint64) types.EventQuery

// Paginator walks [from, to] in sub-ranges of at most maxRange blocks,
// one query per sub-range, strictly in order.
type Paginator struct {
	ledger   types.LedgerClient
	query    QueryFunc
	from     uint64
	to       uint64
	maxRange uint64

	next uint64
	done bool
}

func NewPaginator(ledger types.LedgerClient, query QueryFunc, from, to, maxRange uint64) *Paginator {
	if maxRange == 0 {
		maxRange = 1
	}
	p := &Paginator{
		ledger:   ledger,
		query:    query,
		from:     from,
		to:       to,
		maxRange: maxRange,
	}
	p.Reset()
	return p
}

// Reset rewinds the paginator to the first sub-range.
func (p *Paginator) Reset() {
	p.next = p.from
	p.done = p.from > p.to
}

// Next queries the next sub-range. It returns false once the range is exhausted.
// A failed sub-range is reported in the batch and skipped, never retried.
func (p *Paginator) Next(ctx context.Context) (*Batch, bool) {
	if p.done {
		return nil, false
	}
	r := types.BlockRange{From: p.next, To: p.to}
	if p.to-p.next >= p.maxRange {
		r.To = p.next + p.maxRange - 1
	}
	if r.To == p.to {
		p.done = true
	} else {
		p.next = r.To + 1
	}

	logs, err := p.ledger.QueryEventLogs(ctx, p.query(r.From, r.To))
	if err != nil {
		return &Batch{Range: r, Err: err}, true
	}
	return &Batch{Range: r, Logs: logs}, true
}

// Ranges lists the sub-ranges a paginator over [from, to] visits.
func Ranges(from, to, maxRange uint64) []types.BlockRange {
	if maxRange == 0 {
		maxRange = 1
	}
	var ret []types.BlockRange
	for start := from; start <= to; {
		end := to
		if to-start >= maxRange {
			end = start + maxRange - 1
		}
		ret = append(ret, types.BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}
	return ret
}
