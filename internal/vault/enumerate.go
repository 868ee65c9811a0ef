package vault

import (
	"bytes"
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Summary identifies one vault discovered while enumerating an owner's list.
type Summary struct {
	Cdp *big.Int
	Ilk string
	Urn common.Address
}

// Iterator walks an owner's vault list lazily. The manager keeps vaults in a
// linked list per owner, terminated by the zero id.
type Iterator struct {
	reader  ChainReader
	owner   common.Address
	next    *big.Int
	started bool
}

// OwnedVaults returns a restartable iterator over the vaults owned by owner.
func (l *Loader) OwnedVaults(owner common.Address) *Iterator {
	return &Iterator{reader: l.reader, owner: owner}
}

// Next returns the next vault, or ok=false once the zero sentinel is reached.
func (it *Iterator) Next(ctx context.Context) (Summary, bool, error) {
	if !it.started {
		first, err := it.reader.FirstVault(ctx, it.owner)
		if err != nil {
			return Summary{}, false, err
		}
		it.next = first
		it.started = true
	}

	if it.next == nil || it.next.Sign() == 0 {
		return Summary{}, false, nil
	}

	cdp := new(big.Int).Set(it.next)
	ilkTag, err := it.reader.VaultIlk(ctx, cdp)
	if err != nil {
		return Summary{}, false, err
	}
	urn, err := it.reader.VaultUrn(ctx, cdp)
	if err != nil {
		return Summary{}, false, err
	}
	next, err := it.reader.NextVault(ctx, cdp)
	if err != nil {
		return Summary{}, false, err
	}
	it.next = next

	return Summary{Cdp: cdp, Ilk: ilkString(ilkTag), Urn: urn}, true, nil
}

// Reset restarts the walk from the head of the list.
func (it *Iterator) Reset() {
	it.started = false
	it.next = nil
}

func ilkString(tag [32]byte) string {
	return string(bytes.TrimRight(tag[:], "\x00"))
}
