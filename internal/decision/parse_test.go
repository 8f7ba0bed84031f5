package decision

import (
	"testing"

	"alpha-arena/pkg/types"
)

func TestParseCleanJSON(t *testing.T) {
	t.Parallel()

	raw := `{"operation":"buy","symbol":"BTC","target_portion_of_balance":0.25,"reason":"breakout","trading_strategy":"momentum"}`
	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Operation != types.OpBuy || d.Symbol != "BTC" || d.TargetPortion != 0.25 {
		t.Fatalf("decision = %+v", d)
	}
	if d.Strategy != "momentum" {
		t.Fatalf("strategy = %q", d.Strategy)
	}
}

func TestParseFencedJSON(t *testing.T) {
	t.Parallel()

	raw := "Here is my decision:\n```json\n{\"operation\":\"sell\",\"symbol\":\"eth\",\"target_portion_of_balance\":0.5,\"reason\":\"take profit\"}\n```"
	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Operation != types.OpSell || d.Symbol != "ETH" || d.TargetPortion != 0.5 {
		t.Fatalf("decision = %+v", d)
	}
}

func TestParseOperationCaseNormalized(t *testing.T) {
	t.Parallel()

	d, err := ParseDecision(`{"operation":"HOLD","symbol":null,"target_portion_of_balance":0,"reason":"wait"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Operation != types.OpHold || d.Symbol != "" {
		t.Fatalf("decision = %+v", d)
	}
}

func TestParsePortionAsString(t *testing.T) {
	t.Parallel()

	d, err := ParseDecision(`{"operation":"buy","symbol":"SOL","target_portion_of_balance":"0.3","reason":"r"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.TargetPortion != 0.3 {
		t.Fatalf("portion = %v", d.TargetPortion)
	}
}

func TestParseSmartQuoteRecovery(t *testing.T) {
	t.Parallel()

	// Curly quotes inside the reason break strict JSON; the reply must
	// still come out usable.
	raw := "```json\n{\"operation\":\"buy\",\"symbol\":\"ETH\",\"target_portion_of_balance\":0.1,\"reason\":\"“momentum”\"}\n```"
	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Operation != types.OpBuy || d.Symbol != "ETH" || d.TargetPortion != 0.1 {
		t.Fatalf("decision = %+v", d)
	}
}

func TestParseRegexFallback(t *testing.T) {
	t.Parallel()

	// Trailing comma keeps both JSON stages from succeeding.
	raw := `{"operation":"close","symbol":"DOGE","target_portion_of_balance":1.0,"reason":"exit","extra":,}`
	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Operation != types.OpClose || d.Symbol != "DOGE" || d.TargetPortion != 1.0 {
		t.Fatalf("decision = %+v", d)
	}
}

func TestParseNarrativeWrappedJSON(t *testing.T) {
	t.Parallel()

	raw := "Looking at the market, BTC shows strength.\n" +
		`{"operation":"buy","symbol":"BTC","target_portion_of_balance":0.2,"reason":"strength"}` +
		"\nThat is my final answer."
	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Operation != types.OpBuy {
		t.Fatalf("decision = %+v", d)
	}

	reasoning := ExtractReasoning(raw)
	if reasoning == "" {
		t.Fatal("expected surrounding narrative to be extracted")
	}
}

func TestParseGarbageFails(t *testing.T) {
	t.Parallel()

	if _, err := ParseDecision("I cannot decide right now, markets are closed."); err == nil {
		t.Fatal("expected parse failure")
	}
}
