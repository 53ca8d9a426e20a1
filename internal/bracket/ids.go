package bracket

import (
	"errors"
	"strconv"
	"strings"
)

// MaxClientOrderIDLen is the longest newClientOrderId Binance accepts.
const MaxClientOrderIDLen = 36

const bracketKeyLen = 16

var errMalformedClientID = errors.New("malformed client order id")

// ClientOrderID derives a leg's client order id from the bracket id, the leg
// role and the per-request timestamp. It is a pure function, so a retried
// submission reuses the id and the exchange rejects the duplicate instead of
// opening a second order.
//
// Layout: <first 16 hex of bracket id>_<role>_<timestamp ms, base36>.
func ClientOrderID(bracketID string, role Role, tsMillis int64) string {
	id := BracketKey(bracketID) + "_" + string(role) + "_" + strconv.FormatInt(tsMillis, 36)
	if len(id) > MaxClientOrderIDLen {
		id = id[:MaxClientOrderIDLen]
	}
	return id
}

// ParseClientOrderID splits an id produced by ClientOrderID. The key is the
// bracket id prefix, enough to correlate stream events to a bracket.
func ParseClientOrderID(id string) (key string, role Role, tsMillis int64, err error) {
	first := strings.IndexByte(id, '_')
	last := strings.LastIndexByte(id, '_')
	if first != bracketKeyLen || last <= first+1 {
		return "", "", 0, errMalformedClientID
	}
	ts, err := strconv.ParseInt(id[last+1:], 36, 64)
	if err != nil {
		return "", "", 0, errMalformedClientID
	}
	return id[:first], Role(id[first+1 : last]), ts, nil
}

// BracketKey is the bracket id prefix embedded in every leg's client order id.
func BracketKey(bracketID string) string {
	k := strings.ReplaceAll(bracketID, "-", "")
	if len(k) > bracketKeyLen {
		k = k[:bracketKeyLen]
	}
	return k
}
