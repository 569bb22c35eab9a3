// Package reputation aggregates the verified reputation history of an
// account over a window of completed cycles.
package reputation

import (
	"context"
	"fmt"

	"github.com/encointer/personhood-oracle/common/errors"
	encointer "github.com/encointer/personhood-oracle/encointer/api"
	"github.com/encointer/personhood-oracle/light"
	"github.com/encointer/personhood-oracle/oracle/api"
	"github.com/encointer/personhood-oracle/oracle/reader"
)

// CheckWindow verifies that a window of n cycles preceding current exists.
func CheckWindow(current encointer.CeremonyIndex, n uint32) error {
	if uint32(current) < n {
		return errors.WithContext(api.ErrInsufficientHistory, fmt.Sprintf("current cycle %d, window size %d", current, n))
	}
	return nil
}

// Aggregator aggregates reputation windows.
type Aggregator struct {
	reader *reader.Reader
}

// Aggregate reads the reputation of the account for the n cycles preceding
// current, most recent first.
//
// All reads use the given snapshot. The window is either complete or the
// call fails.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	snap *light.Snapshot,
	cid encointer.CommunityIdentifier,
	account encointer.AccountID,
	current encointer.CeremonyIndex,
	n uint32,
) (encointer.ReputationWindow, error) {
	if err := CheckWindow(current, n); err != nil {
		return nil, err
	}

	window := make(encointer.ReputationWindow, 0, n)
	for i := uint32(1); i <= n; i++ {
		cindex := current - encointer.CeremonyIndex(i)
		rep, err := a.reader.ReadReputation(ctx, encointer.ReputationStorageKey(cid, cindex, account), snap)
		if err != nil {
			return nil, err
		}
		window = append(window, rep)
	}
	return window, nil
}

// New creates a new reputation aggregator.
func New(reader *reader.Reader) *Aggregator {
	return &Aggregator{
		reader: reader,
	}
}
