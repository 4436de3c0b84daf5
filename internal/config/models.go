// ABOUTME: Model name resolution for the CLI: "model[:thinking]" parsing and fuzzy suggestions
// ABOUTME: Unknown IDs fail with "did you mean" hints; a "models/" prefix bypasses the catalog

package config

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/mauromedda/genai-go/pkg/interactions"
)

// validThinkingLevels lists recognized thinking level suffixes.
var validThinkingLevels = map[string]bool{
	"minimal": true,
	"low":     true,
	"medium":  true,
	"high":    true,
}

const maxSuggestions = 3

// ParseModelSpec splits "model-id" or "model-id:thinking" into its parts.
// A suffix that is not a thinking level stays part of the model ID.
func ParseModelSpec(input string) (modelID, thinkingLevel string) {
	lastColon := strings.LastIndex(input, ":")
	if lastColon < 0 {
		return input, ""
	}
	suffix := strings.ToLower(input[lastColon+1:])
	if validThinkingLevels[suffix] {
		return input[:lastColon], suffix
	}
	return input, ""
}

// ResolveModel finds a built-in model or agent. IDs written as "models/<id>"
// are passed through unchecked so new models work before the catalog knows them.
func ResolveModel(id string) (*interactions.Model, error) {
	if id == "" {
		m := interactions.ModelGemini25Flash
		return &m, nil
	}
	if m := interactions.FindModel(id); m != nil {
		return m, nil
	}
	if custom, ok := strings.CutPrefix(id, "models/"); ok && custom != "" {
		return &interactions.Model{ID: custom, Name: custom}, nil
	}

	if s := Suggest(id); len(s) > 0 {
		return nil, fmt.Errorf("unknown model %q (did you mean %s?)", id, strings.Join(s, ", "))
	}
	return nil, fmt.Errorf("unknown model %q", id)
}

// Suggest returns up to three built-in IDs that fuzzy-match id, best first.
func Suggest(id string) []string {
	models := interactions.BuiltinModels()
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}

	var out []string
	for _, match := range fuzzy.Find(id, ids) {
		out = append(out, match.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
