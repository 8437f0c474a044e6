package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/pkoukk/tiktoken-go"
)

// GenerateSchema reflects a JSON schema from the type of value for use as a
// structured output format.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return reflector.Reflect(reflect.New(t).Interface())
}

// UnmarshalFlexible decodes model output into out. It accepts plain JSON,
// JSON wrapped in a string literal, JSON inside a markdown fence and
// malformed JSON that jsonrepair can fix.
func UnmarshalFlexible(input string, out any) error {
	input = stripFence(strings.TrimSpace(input))

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	input = stripDuplicateLeadingBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}

	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("unmarshal failed after repair: input=%s repaired=%s", input, repaired)
	}
	return nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func stripDuplicateLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// CountTokens estimates the token count of text with the o200k_base
// encoding. If the encoding cannot be loaded it falls back to four
// characters per token.
func CountTokens(text string) int {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("o200k_base")
	})
	if encErr != nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// Metrics accumulates ModelMetrics across concurrent requests.
type Metrics struct {
	mu sync.Mutex
	m  ModelMetrics
}

func (m *Metrics) Add(delta ModelMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.m.InputTokens += delta.InputTokens
	m.m.OutputTokens += delta.OutputTokens
	m.m.TotalTokens += delta.TotalTokens
	m.m.DurationMs += delta.DurationMs

	if m.m.DurationMs > 0 {
		tps := (float64(m.m.TotalTokens) * 1000.0) / float64(m.m.DurationMs)
		m.m.TokenPerSecond = float32(math.Round(tps*100) / 100)
	}
}

func (m *Metrics) Reset() {
	m.mu.Lock()
	m.m = ModelMetrics{}
	m.mu.Unlock()
}

func (m *Metrics) Get() ModelMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m
}
