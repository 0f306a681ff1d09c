package provider

import (
	"sort"
	"strings"
)

// ID identifies an LLM vendor integration.
type ID string

// Canonical provider identifiers.
const (
	OpenAI     ID = "openai"
	Anthropic  ID = "anthropic"
	Gemini     ID = "gemini"
	Ollama     ID = "ollama"
	Local      ID = "local"
	Azure      ID = "azure"
	DeepSeek   ID = "deepseek"
	OpenRouter ID = "openrouter"
)

// aliases maps accepted inputs to canonical identifiers.
var aliases = map[string]ID{
	"openai":               OpenAI,
	"openai-compatibility": OpenAI,
	"anthropic":            Anthropic,
	"claude":               Anthropic,
	"claude-code":          Anthropic,
	"gemini":               Gemini,
	"google":               Gemini,
	"ollama":               Ollama,
	"local":                Local,
	"azure":                Azure,
	"azure-openai":         Azure,
	"deepseek":             DeepSeek,
	"openrouter":           OpenRouter,
}

// Normalize maps provider input into a canonical identifier.
// The second return value is false when the input is not a known provider.
func Normalize(value string) (ID, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return "", false
	}
	id, ok := aliases[trimmed]
	return id, ok
}

// Valid reports whether id is one of the canonical identifiers.
func (id ID) Valid() bool {
	canonical, ok := aliases[string(id)]
	return ok && canonical == id
}

func (id ID) String() string { return string(id) }

// All returns the canonical identifiers in lexical order.
func All() []ID {
	seen := make(map[ID]struct{}, len(aliases))
	out := make([]ID, 0, len(aliases))
	for _, id := range aliases {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
