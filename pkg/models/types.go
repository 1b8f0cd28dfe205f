// Package models defines data structures for Perplexity API requests and responses.
package models

import (
	"errors"
	"fmt"
)

// Mode represents the search mode for Perplexity queries.
type Mode string

const (
	ModeAuto         Mode = "auto"
	ModePro          Mode = "pro"
	ModeReasoning    Mode = "reasoning"
	ModeDeepResearch Mode = "deep-research"
)

// Model represents a model selector. The zero value selects the mode's default model.
type Model string

// ModelDefault means "use the mode's default model".
const ModelDefault Model = ""

// Pro mode models
const (
	ModelSonar          Model = "sonar"
	ModelGPT52          Model = "gpt-5.2"
	ModelClaude45Sonnet Model = "claude-4.5-sonnet"
	ModelGrok41         Model = "grok-4.1"
)

// Reasoning mode models
const (
	ModelGPT52Thinking          Model = "gpt-5.2-thinking"
	ModelClaude45SonnetThinking Model = "claude-4.5-sonnet-thinking"
	ModelGemini30Pro            Model = "gemini-3.0-pro"
	ModelKimiK2Thinking         Model = "kimi-k2-thinking"
	ModelGrok41Reasoning        Model = "grok-4.1-reasoning"
)

// Source represents search sources.
type Source string

const (
	SourceWeb     Source = "web"
	SourceScholar Source = "scholar"
	SourceSocial  Source = "social"
)

// AvailableModes contains every search mode.
var AvailableModes = []Mode{
	ModeAuto,
	ModePro,
	ModeReasoning,
	ModeDeepResearch,
}

// AvailableProModels contains models available for Pro mode.
var AvailableProModels = []Model{
	ModelSonar,
	ModelGPT52,
	ModelClaude45Sonnet,
	ModelGrok41,
}

// AvailableReasoningModels contains models available for Reasoning mode.
var AvailableReasoningModels = []Model{
	ModelGPT52Thinking,
	ModelClaude45SonnetThinking,
	ModelGemini30Pro,
	ModelKimiK2Thinking,
	ModelGrok41Reasoning,
}

// AvailableModels contains all valid model names.
var AvailableModels = append(append([]Model{}, AvailableProModels...), AvailableReasoningModels...)

// AvailableSources contains all valid source names.
var AvailableSources = []Source{
	SourceWeb,
	SourceScholar,
	SourceSocial,
}

type modeModel struct {
	mode  Mode
	model Model
}

// modelPreferences maps every legal (mode, model) pair to the backend
// model_preference token. Pairs not listed here are rejected.
var modelPreferences = map[modeModel]string{
	{ModeAuto, ModelDefault}: "turbo",

	{ModePro, ModelDefault}:        "pplx_pro",
	{ModePro, ModelSonar}:          "experimental",
	{ModePro, ModelGPT52}:          "gpt52",
	{ModePro, ModelClaude45Sonnet}: "claude45sonnet",
	{ModePro, ModelGrok41}:         "grok41nonreasoning",

	{ModeReasoning, ModelDefault}:                "pplx_reasoning",
	{ModeReasoning, ModelGPT52Thinking}:          "gpt52_thinking",
	{ModeReasoning, ModelClaude45SonnetThinking}: "claude45sonnetthinking",
	{ModeReasoning, ModelGemini30Pro}:            "gemini30pro",
	{ModeReasoning, ModelKimiK2Thinking}:         "kimik2thinking",
	{ModeReasoning, ModelGrok41Reasoning}:        "grok41reasoning",

	{ModeDeepResearch, ModelDefault}: "pplx_alpha",
}

// ErrInvalidModelForMode is matched by every *InvalidModelError.
var ErrInvalidModelForMode = errors.New("invalid model for mode")

// InvalidModelError reports a model selector that is not legal for a mode.
type InvalidModelError struct {
	Mode  Mode
	Model Model
}

func (e *InvalidModelError) Error() string {
	model := string(e.Model)
	if e.Model == ModelDefault {
		model = "default"
	}
	return fmt.Sprintf("invalid model '%s' for mode '%s'", model, e.Mode)
}

// Is reports whether target is ErrInvalidModelForMode.
func (e *InvalidModelError) Is(target error) bool {
	return target == ErrInvalidModelForMode
}

// ResolveModel returns the backend model_preference token for a mode and
// an optional model. It never panics: unknown or illegal combinations
// return an *InvalidModelError.
func ResolveModel(mode Mode, model Model) (string, error) {
	if token, ok := modelPreferences[modeModel{mode, model}]; ok {
		return token, nil
	}
	return "", &InvalidModelError{Mode: mode, Model: model}
}

// ModesForModel returns the modes under which model is legal.
func ModesForModel(model Model) []Mode {
	var modes []Mode
	for _, mode := range AvailableModes {
		if _, ok := modelPreferences[modeModel{mode, model}]; ok {
			modes = append(modes, mode)
		}
	}
	return modes
}

// WireMode returns the coarse mode bucket sent to the backend.
func (m Mode) WireMode() string {
	if m == ModeAuto {
		return "concise"
	}
	return "copilot"
}

// IsValidModel checks if a model name is valid.
func IsValidModel(m Model) bool {
	for _, valid := range AvailableModels {
		if m == valid {
			return true
		}
	}
	return false
}

// IsValidSource checks if a source name is valid.
func IsValidSource(s Source) bool {
	for _, valid := range AvailableSources {
		if s == valid {
			return true
		}
	}
	return false
}

// IsValidMode checks if a mode is valid.
func IsValidMode(m Mode) bool {
	switch m {
	case ModeAuto, ModePro, ModeReasoning, ModeDeepResearch:
		return true
	}
	return false
}
