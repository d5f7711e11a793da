package mcp

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDStrategy selects how correlation ids are generated.
type IDStrategy string

const (
	// IDStrategyCounter issues 1, 2, 3, ... for the lifetime of the correlator.
	IDStrategyCounter IDStrategy = "counter"
	// IDStrategyUUID issues random UUID strings.
	IDStrategyUUID IDStrategy = "uuid"
)

// Correlator hands out session-unique request ids and checks that replies
// carry the id of the request that produced them. Safe for concurrent use.
type Correlator struct {
	strategy IDStrategy
	counter  atomic.Int64
}

// NewCorrelator returns a correlator. Unknown strategies fall back to the counter.
func NewCorrelator(strategy IDStrategy) *Correlator {
	if strategy != IDStrategyUUID {
		strategy = IDStrategyCounter
	}
	return &Correlator{strategy: strategy}
}

// Next returns an id never returned before by this correlator.
func (c *Correlator) Next() ID {
	if c.strategy == IDStrategyUUID {
		return StringID(uuid.NewString())
	}
	return Int64ID(c.counter.Add(1))
}

// Match checks resp against the id just issued. It returns nil only for a
// reply with the same id; transport failures and mismatches become *Error.
func (c *Correlator) Match(issued ID, resp *Response) *Error {
	if resp == nil {
		return &Error{Kind: KindProtocol, Message: "no response"}
	}
	if resp.Failure != nil {
		return resp.Failure
	}
	if resp.ID != issued {
		if resp.Error != nil && resp.ID.IsZero() {
			// JSON-RPC servers answer unreadable requests with a null id.
			return &Error{
				Kind:    KindProtocol,
				Code:    resp.Error.Code,
				Message: fmt.Sprintf("server rejected request %s: %s", issued, resp.Error.Message),
				Err:     resp.Error,
			}
		}
		return &Error{
			Kind:    KindProtocol,
			Message: fmt.Sprintf("response id %s does not match request id %s", resp.ID, issued),
		}
	}
	return nil
}
