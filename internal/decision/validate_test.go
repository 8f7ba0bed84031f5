package decision

import (
	"errors"
	"testing"

	"alpha-arena/pkg/types"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		d       types.Decision
		wantErr bool
	}{
		{"valid buy", types.Decision{Operation: types.OpBuy, Symbol: "BTC", TargetPortion: 0.5}, false},
		{"valid sell full", types.Decision{Operation: types.OpSell, Symbol: "ETH", TargetPortion: 1}, false},
		{"valid close", types.Decision{Operation: types.OpClose, Symbol: "DOGE", TargetPortion: 1}, false},
		{"valid hold", types.Decision{Operation: types.OpHold}, false},
		{"hold with portion", types.Decision{Operation: types.OpHold, TargetPortion: 0.5}, true},
		{"buy zero portion", types.Decision{Operation: types.OpBuy, Symbol: "BTC", TargetPortion: 0}, true},
		{"buy over one", types.Decision{Operation: types.OpBuy, Symbol: "BTC", TargetPortion: 1.1}, true},
		{"unsupported symbol", types.Decision{Operation: types.OpBuy, Symbol: "SHIB", TargetPortion: 0.5}, true},
		{"unknown operation", types.Decision{Operation: "short", Symbol: "BTC", TargetPortion: 0.5}, true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(&tc.d)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("error type = %T, want *ValidationError", err)
				}
			}
		})
	}
}

func TestIsDemoAccount(t *testing.T) {
	t.Parallel()

	if !IsDemoAccount(types.Account{APIKey: ""}) {
		t.Fatal("empty key is a placeholder")
	}
	if !IsDemoAccount(types.Account{APIKey: " sk-demo "}) {
		t.Fatal("sk-demo is a placeholder")
	}
	if IsDemoAccount(types.Account{APIKey: "sk-live-abc123"}) {
		t.Fatal("real key flagged as placeholder")
	}
}
