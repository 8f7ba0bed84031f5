package broker

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// signedQuery builds the query string for a signed exchange call: parameters
// in insertion order, a millisecond timestamp appended, and the HMAC-SHA256
// signature of the whole string added as the final parameter.
func signedQuery(params []param, secret string, now time.Time) string {
	values := url.Values{}
	keys := make([]string, 0, len(params)+1)
	for _, p := range params {
		values.Set(p.key, p.value)
		keys = append(keys, p.key)
	}
	values.Set("timestamp", strconv.FormatInt(now.UnixMilli(), 10))
	keys = append(keys, "timestamp")

	query := encodeOrdered(values, keys)
	return query + "&signature=" + sign(query, secret)
}

// param is one query parameter. A slice preserves insertion order, which is
// part of the signing contract.
type param struct {
	key   string
	value string
}

// sign computes the hex-encoded HMAC-SHA256 of payload keyed by secret.
func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// encodeOrdered serializes values in the given key order. url.Values.Encode
// sorts alphabetically, which would break signature verification for callers
// expecting insertion order.
func encodeOrdered(values url.Values, keys []string) string {
	var query string
	for i, key := range keys {
		if i > 0 {
			query += "&"
		}
		query += fmt.Sprintf("%s=%s", key, url.QueryEscape(values.Get(key)))
	}
	return query
}
