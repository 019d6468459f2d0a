package wire

import (
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/icon-project/xcall-core/internal/xcallerr"
)

// NetworkAddress is the canonical "<netId>/<account>" identifier used
// everywhere a cross-chain principal needs to be named: the sender of a
// request, the rollback owner, the reply target.
type NetworkAddress struct {
	NetID   string
	Account string
}

// NewNetworkAddress builds the caller's own address on a given network,
// the constructor every connection and the dispatcher itself use to stamp
// CSMessageRequest.From.
func NewNetworkAddress(netID, account string) NetworkAddress {
	return NetworkAddress{NetID: netID, Account: account}
}

// ParseNetworkAddress parses "nid/account", failing when the delimiter is
// missing or sits at a boundary (empty nid or empty account).
func ParseNetworkAddress(s string) (NetworkAddress, error) {
	idx := strings.IndexByte(s, '/')
	if idx <= 0 || idx == len(s)-1 {
		return NetworkAddress{}, xcallerr.ErrInvalidPayload
	}
	return NetworkAddress{NetID: s[:idx], Account: s[idx+1:]}, nil
}

// String renders the canonical textual form; round-trips losslessly
// through ParseNetworkAddress.
func (a NetworkAddress) String() string {
	return a.NetID + "/" + a.Account
}

func (a NetworkAddress) IsZero() bool {
	return a.NetID == "" && a.Account == ""
}

// EncodeRLP writes the address as the UTF-8 bytes of its textual form.
func (a NetworkAddress) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, []byte(a.String()))
}

// DecodeRLP reads back a byte string and parses it, rejecting malformed
// textual forms rather than accepting a structurally valid but unparsable
// address.
func (a *NetworkAddress) DecodeRLP(s *rlp.Stream) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	parsed, err := ParseNetworkAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
