package broker

import "fmt"

// Kind classifies broker failures so callers can tell retriable transport
// problems from permanent rejections without string matching.
type Kind string

const (
	KindCredentialMissing    Kind = "credential_missing"
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindGeoRestricted        Kind = "geo_restricted"
	KindRateLimited          Kind = "rate_limited"
	KindNetwork              Kind = "network"
	KindMalformedResponse    Kind = "malformed_response"
	KindNotionalBelowMin     Kind = "notional_below_min"
	KindLotSizeUnsatisfiable Kind = "lot_size_unsatisfiable"
	KindUnknownSymbol        Kind = "unknown_symbol"
	KindExchangeRejected     Kind = "exchange_rejected"
)

// Error is the broker failure envelope. Msg carries the exchange's own
// message for exchange_rejected, or a local description otherwise.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Permanent reports whether retrying the same call cannot help.
func (e *Error) Permanent() bool {
	switch e.Kind {
	case KindCredentialMissing, KindUnauthorized, KindForbidden, KindGeoRestricted,
		KindNotionalBelowMin, KindLotSizeUnsatisfiable, KindUnknownSymbol, KindExchangeRejected:
		return true
	}
	return false
}

// kindForStatus maps an HTTP status to a failure kind.
func kindForStatus(status int) Kind {
	switch status {
	case 401:
		return KindUnauthorized
	case 403:
		return KindForbidden
	case 429, 418:
		return KindRateLimited
	case 451:
		return KindGeoRestricted
	default:
		return KindExchangeRejected
	}
}
