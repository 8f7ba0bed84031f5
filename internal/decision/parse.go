package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"alpha-arena/pkg/types"
)

// ParseDecision turns raw oracle output into a Decision using three stages
// of increasing tolerance:
//
//  1. strip code fences and parse as clean JSON,
//  2. normalize common LLM offenders (smart quotes, exotic dashes,
//     non-breaking whitespace) and parse again,
//  3. regex-extract the four required fields from the wreckage.
//
// Only if all three fail is the reply abandoned.
func ParseDecision(raw string) (*types.Decision, error) {
	text := stripFences(raw)

	if d, err := parseJSON(text); err == nil {
		return d, nil
	}
	if d, err := parseJSON(normalize(text)); err == nil {
		return d, nil
	}
	if d, err := extractFields(normalize(text)); err == nil {
		return d, nil
	}
	return nil, fmt.Errorf("unparseable oracle reply: %s", truncate(raw, 200))
}

// ExtractReasoning returns the narrative the model wrapped around the JSON
// object, for the audit snapshot. Empty when the reply was bare JSON.
func ExtractReasoning(raw string) string {
	text := stripFences(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	narrative := strings.TrimSpace(text[:start] + text[end+1:])
	return narrative
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// stripFences unwraps a ```json ... ``` block if present, otherwise returns
// the trimmed input.
func stripFences(raw string) string {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

var normalizer = strings.NewReplacer(
	"\u201c", `"`, "\u201d", `"`, // curly double quotes
	"\u2018", "'", "\u2019", "'", // curly single quotes
	"\u2014", "-", "\u2013", "-", "\u2212", "-", // em dash, en dash, minus sign
	"\u00a0", " ", // non-breaking space
	"\u200b", "", // zero-width space
	"\u3000", " ", // ideographic space
)

func normalize(text string) string {
	return strings.TrimSpace(normalizer.Replace(text))
}

// decisionPayload tolerates portions arriving as numbers or quoted strings.
type decisionPayload struct {
	Operation     string          `json:"operation"`
	Symbol        string          `json:"symbol"`
	TargetPortion json.RawMessage `json:"target_portion_of_balance"`
	Reason        string          `json:"reason"`
	Strategy      string          `json:"trading_strategy"`
}

func parseJSON(text string) (*types.Decision, error) {
	// Models often wrap the object in narrative; parse the outermost braces.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, errors.New("no JSON object found")
	}

	var payload decisionPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, err
	}
	if payload.Operation == "" {
		return nil, errors.New("missing operation")
	}

	portion, err := parsePortion(payload.TargetPortion)
	if err != nil {
		return nil, err
	}
	return &types.Decision{
		Operation:     types.Operation(strings.ToLower(strings.TrimSpace(payload.Operation))),
		Symbol:        strings.ToUpper(strings.TrimSpace(payload.Symbol)),
		TargetPortion: portion,
		Reason:        payload.Reason,
		Strategy:      payload.Strategy,
	}, nil
}

func parsePortion(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return 0, nil
	}
	portion, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad target portion %q: %w", s, err)
	}
	return portion, nil
}

var (
	opRe      = regexp.MustCompile(`(?i)"operation"\s*:\s*"(\w+)"`)
	symbolRe  = regexp.MustCompile(`(?i)"symbol"\s*:\s*"(\w+)"`)
	portionRe = regexp.MustCompile(`(?i)"target_portion_of_balance"\s*:\s*"?([0-9.]+)"?`)
	reasonRe  = regexp.MustCompile(`(?i)"reason"\s*:\s*"([^"]*)"`)
)

// extractFields is the last-resort stage: pull each field out individually
// so one mangled value cannot sink the whole reply.
func extractFields(text string) (*types.Decision, error) {
	op := opRe.FindStringSubmatch(text)
	if op == nil {
		return nil, errors.New("operation not found")
	}
	d := &types.Decision{
		Operation: types.Operation(strings.ToLower(op[1])),
	}
	if m := symbolRe.FindStringSubmatch(text); m != nil {
		d.Symbol = strings.ToUpper(m[1])
	}
	if m := portionRe.FindStringSubmatch(text); m != nil {
		portion, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			d.TargetPortion = portion
		}
	}
	if m := reasonRe.FindStringSubmatch(text); m != nil {
		d.Reason = m[1]
	}
	return d, nil
}
