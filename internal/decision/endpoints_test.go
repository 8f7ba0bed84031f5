package decision

import "testing"

func TestChatEndpoints(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		base string
		want []string
	}{
		{
			name: "openai style with v1",
			base: "https://api.openai.com/v1",
			want: []string{
				"https://api.openai.com/v1/chat/completions",
				"https://api.openai.com/chat/completions",
			},
		},
		{
			name: "deepseek style without v1",
			base: "https://api.deepseek.com",
			want: []string{
				"https://api.deepseek.com/chat/completions",
				"https://api.deepseek.com/v1/chat/completions",
			},
		},
		{
			name: "azure passthrough",
			base: "https://myres.openai.azure.com/openai/v1",
			want: []string{
				"https://myres.openai.azure.com/openai/v1/chat/completions",
			},
		},
		{
			name: "trailing slash trimmed",
			base: "https://api.openai.com/v1/",
			want: []string{
				"https://api.openai.com/v1/chat/completions",
				"https://api.openai.com/chat/completions",
			},
		},
		{
			name: "empty base",
			base: "  ",
			want: nil,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := chatEndpoints(tc.base)
			if len(got) != len(tc.want) {
				t.Fatalf("endpoints = %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("endpoints = %v, want %v", got, tc.want)
				}
			}
		})
	}
}
