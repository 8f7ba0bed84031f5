package decision

import "strings"

// chatEndpoints derives the ordered list of chat-completion URLs to try for
// an account's base URL.
//
// Azure-style bases that already end in /openai/v1 are passed through
// untouched. Everything else gets {base}/chat/completions first, then a
// Deepseek-style alternate with the /v1 segment toggled: providers disagree
// on whether the version prefix belongs in the base URL, and trying both
// spellings costs one extra request only on failure.
func chatEndpoints(baseURL string) []string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil
	}

	if strings.HasSuffix(base, "/openai/v1") {
		return []string{base + "/chat/completions"}
	}

	endpoints := []string{base + "/chat/completions"}
	if alt, ok := strings.CutSuffix(base, "/v1"); ok {
		endpoints = append(endpoints, alt+"/chat/completions")
	} else {
		endpoints = append(endpoints, base+"/v1/chat/completions")
	}
	return endpoints
}
