package broker

import (
	"strings"
	"testing"
	"time"
)

func TestSignedQueryKnownVector(t *testing.T) {
	t.Parallel()

	params := []param{
		{"symbol", "BTCUSDT"},
		{"side", "BUY"},
		{"type", "MARKET"},
		{"quantity", "0.001"},
	}
	at := time.UnixMilli(1700000000000)

	got := signedQuery(params, "test-secret", at)
	want := "symbol=BTCUSDT&side=BUY&type=MARKET&quantity=0.001&timestamp=1700000000000" +
		"&signature=7ed369c4c2ffd5fa7a30abc5da4f4da388d0cd9bd340b987acf7a29bf2f43165"
	if got != want {
		t.Fatalf("signedQuery =\n  %s\nwant\n  %s", got, want)
	}
}

func TestSignedQueryNoParams(t *testing.T) {
	t.Parallel()

	got := signedQuery(nil, "test-secret", time.UnixMilli(1700000000000))
	want := "timestamp=1700000000000" +
		"&signature=dccf2651b1d8329665bfddb0798eccd4650d986a9cfe5547b2f5822131e7620b"
	if got != want {
		t.Fatalf("signedQuery = %s, want %s", got, want)
	}
}

func TestSignedQueryPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	params := []param{
		{"zzz", "1"},
		{"aaa", "2"},
	}
	got := signedQuery(params, "s", time.UnixMilli(1))
	if !strings.HasPrefix(got, "zzz=1&aaa=2&timestamp=1&signature=") {
		t.Fatalf("params were reordered: %s", got)
	}
}
