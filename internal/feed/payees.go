package feed

import "starlingcal/internal/starling"

// PayeeDirectory maps payee identifiers to display names.
type PayeeDirectory map[starling.PayeeUID]string

func NewPayeeDirectory(payees []starling.Payee) PayeeDirectory {
	dir := make(PayeeDirectory, len(payees))
	for _, p := range payees {
		dir[p.PayeeUID] = p.PayeeName
	}
	return dir
}

// Name returns the payee's display name, or "" when the payee is unknown.
func (d PayeeDirectory) Name(uid starling.PayeeUID) string {
	return d[uid]
}
