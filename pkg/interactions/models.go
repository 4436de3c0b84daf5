// ABOUTME: Built-in catalog of models and agents reachable through the Interactions API
// ABOUTME: Used for CLI validation and suggestions; the client itself accepts any model string

package interactions

// Model describes a model or agent the API serves.
type Model struct {
	ID               string
	Name             string
	Agent            bool
	MaxOutputTokens  int
	SupportsThinking bool
	SupportsImages   bool
}

// Built-in model definitions.
var (
	ModelGemini3ProPreview = Model{
		ID:               "gemini-3-pro-preview",
		Name:             "Gemini 3 Pro Preview",
		MaxOutputTokens:  65536,
		SupportsThinking: true,
		SupportsImages:   true,
	}

	ModelGemini25Pro = Model{
		ID:               "gemini-2.5-pro",
		Name:             "Gemini 2.5 Pro",
		MaxOutputTokens:  65536,
		SupportsThinking: true,
		SupportsImages:   true,
	}

	ModelGemini25Flash = Model{
		ID:               "gemini-2.5-flash",
		Name:             "Gemini 2.5 Flash",
		MaxOutputTokens:  65536,
		SupportsThinking: true,
		SupportsImages:   true,
	}

	ModelGemini25FlashLite = Model{
		ID:              "gemini-2.5-flash-lite",
		Name:            "Gemini 2.5 Flash Lite",
		MaxOutputTokens: 65536,
		SupportsImages:  true,
	}

	ModelGemini25FlashImage = Model{
		ID:              "gemini-2.5-flash-image",
		Name:            "Gemini 2.5 Flash Image",
		MaxOutputTokens: 32768,
		SupportsImages:  true,
	}

	AgentDeepResearch = Model{
		ID:               "deep-research-pro-preview-12-2025",
		Name:             "Deep Research",
		Agent:            true,
		SupportsThinking: true,
	}
)

// BuiltinModels returns all built-in definitions, agents included.
func BuiltinModels() []Model {
	return []Model{
		ModelGemini3ProPreview,
		ModelGemini25Pro,
		ModelGemini25Flash,
		ModelGemini25FlashLite,
		ModelGemini25FlashImage,
		AgentDeepResearch,
	}
}

var modelIndex = func() map[string]*Model {
	models := BuiltinModels()
	idx := make(map[string]*Model, len(models))
	for i := range models {
		idx[models[i].ID] = &models[i]
	}
	return idx
}()

// FindModel looks up a built-in model or agent by ID. Returns nil if not found.
func FindModel(id string) *Model {
	return modelIndex[id]
}
