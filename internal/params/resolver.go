// Package params implements the Parameter Resolver (C5): given
// (providerId, modelId, tabId, source), it layers user-stored settings
// over platform-level defaults over the config descriptor's own
// defaults, applies capability gating, and emits the full Resolved
// parameter set the Stream Coordinator hands to a provider adapter.
package params

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/devon-ng/gatewaycore/internal/config"
	"github.com/devon-ng/gatewaycore/internal/gatewayerr"
	"github.com/devon-ng/gatewaycore/internal/kv"
)

// Role is one of the three conversation roles the gateway passes
// through to an adapter.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of conversation history, passed through from the
// caller unchanged (§4.5 step 7).
type Message struct {
	Role    Role
	Content string
}

// Source distinguishes where a turn originated — only used by the
// model-selection sub-resolver (§4.5 step 8).
type Source string

const (
	SourcePopup   Source = "popup"
	SourceSidebar Source = "sidebar"
)

// Resolved is the full effective parameter set (C5's output, C4's
// input).
type Resolved struct {
	Model                     string
	ParameterStyle            config.ParameterStyle
	TokenParameter            string
	MaxTokens                 int
	ContextWindow             int
	ModelSupportsSystemPrompt bool

	// Optional — nil/empty means "not emitted" per the gating rules of
	// §4.5 steps 4-6.
	Temperature *float64
	TopP        *float64
	SystemPrompt string

	ConversationHistory []Message
}

// Overrides is the subset of settings a caller (user preference, or
// platform default) may supply. Pointer fields distinguish "not set"
// from an explicit zero value; SystemPrompt uses a pointer because the
// empty string is itself a meaningful "no system prompt" value at the
// per-model layer, but an unset platform-level override should not
// shadow a per-model one.
type Overrides struct {
	IncludeTemperature *bool
	Temperature        *float64
	IncludeTopP        *bool
	TopP               *float64
	SystemPrompt       *string
}

// merge layers `over` on top of `base`: any field `over` sets wins.
func merge(base, over Overrides) Overrides {
	out := base
	if over.IncludeTemperature != nil {
		out.IncludeTemperature = over.IncludeTemperature
	}
	if over.Temperature != nil {
		out.Temperature = over.Temperature
	}
	if over.IncludeTopP != nil {
		out.IncludeTopP = over.IncludeTopP
	}
	if over.TopP != nil {
		out.TopP = over.TopP
	}
	if over.SystemPrompt != nil {
		out.SystemPrompt = over.SystemPrompt
	}
	return out
}

// PlatformSettings additionally carries the platform-wide system-prompt
// capability gate used in step 6.
type PlatformSettings struct {
	Overrides
	HasSystemPrompt *bool
}

// SettingsStore is the persistence contract for user-stored settings
// (§6.4's "user parameter overrides" key, opaque beyond this shape).
// It is backed by a kv.Store holding JSON blobs, the same storage
// contract the Credential Store uses.
type SettingsStore struct {
	kv kv.Store
}

// NewSettingsStore wraps a kv.Store as a settings store.
func NewSettingsStore(backing kv.Store) *SettingsStore {
	return &SettingsStore{kv: backing}
}

func modelKey(providerID config.ProviderID, modelID string) string {
	return fmt.Sprintf("prefs:model:%s:%s", providerID, modelID)
}

func platformKey() string {
	return "prefs:platform"
}

// PerModel loads the per-(provider,model) user overrides. A missing
// record is not an error — it just means no per-model overrides exist.
func (s *SettingsStore) PerModel(ctx context.Context, providerID config.ProviderID, modelID string) (Overrides, error) {
	var out Overrides
	raw, err := s.kv.Get(ctx, modelKey(providerID, modelID))
	if errors.Is(err, kv.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("loading per-model settings: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("per-model settings: corrupt record: %w", err)
	}
	return out, nil
}

// Platform loads the platform-wide user overrides.
func (s *SettingsStore) Platform(ctx context.Context) (PlatformSettings, error) {
	var out PlatformSettings
	raw, err := s.kv.Get(ctx, platformKey())
	if errors.Is(err, kv.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("loading platform settings: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("platform settings: corrupt record: %w", err)
	}
	return out, nil
}

// PutPerModel stores per-model overrides.
func (s *SettingsStore) PutPerModel(ctx context.Context, providerID config.ProviderID, modelID string, o Overrides) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal per-model settings: %w", err)
	}
	return s.kv.Put(ctx, modelKey(providerID, modelID), string(raw))
}

// PutPlatform stores platform-wide overrides.
func (s *SettingsStore) PutPlatform(ctx context.Context, p PlatformSettings) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal platform settings: %w", err)
	}
	return s.kv.Put(ctx, platformKey(), string(raw))
}

// tabModelKey / sidebarModelKey back the model-selection sub-resolver
// (§4.5 step 8).
func tabModelKey(tabID int, providerID config.ProviderID) string {
	return fmt.Sprintf("modelpref:tab:%d:%s", tabID, providerID)
}

func sidebarModelKey(providerID config.ProviderID) string {
	return fmt.Sprintf("modelpref:sidebar:%s", providerID)
}

// SelectModel implements §4.5 step 8: a tab-scoped preference wins over
// a sidebar-scoped one; if neither exists, ok is false and the caller
// falls back to the descriptor's default model.
func (s *SettingsStore) SelectModel(ctx context.Context, providerID config.ProviderID, tabID int, source Source) (modelID string, ok bool, err error) {
	if tabID != 0 {
		v, err := s.kv.Get(ctx, tabModelKey(tabID, providerID))
		if err == nil {
			return v, true, nil
		}
		if !errors.Is(err, kv.ErrNotFound) {
			return "", false, fmt.Errorf("loading tab model preference: %w", err)
		}
	}
	if source == SourceSidebar {
		v, err := s.kv.Get(ctx, sidebarModelKey(providerID))
		if err == nil {
			return v, true, nil
		}
		if !errors.Is(err, kv.ErrNotFound) {
			return "", false, fmt.Errorf("loading sidebar model preference: %w", err)
		}
	}
	return "", false, nil
}

// PutTabModel stores a tab-scoped model preference.
func (s *SettingsStore) PutTabModel(ctx context.Context, providerID config.ProviderID, tabID int, modelID string) error {
	return s.kv.Put(ctx, tabModelKey(tabID, providerID), modelID)
}

// PutSidebarModel stores the sidebar-global model preference.
func (s *SettingsStore) PutSidebarModel(ctx context.Context, providerID config.ProviderID, modelID string) error {
	return s.kv.Put(ctx, sidebarModelKey(providerID), modelID)
}

// Resolver is the Parameter Resolver (C5).
type Resolver struct {
	cfg      *config.Config
	settings *SettingsStore
}

// New builds a Resolver over the given config and settings store.
func New(cfg *config.Config, settings *SettingsStore) *Resolver {
	return &Resolver{cfg: cfg, settings: settings}
}

// Input bundles the request-scoped arguments to Resolve.
type Input struct {
	ProviderID          config.ProviderID
	ModelID             string
	ConversationHistory []Message
}

// Resolve computes the full effective parameter set for one turn,
// following §4.5 steps 1-7. Step 8 (model selection) is a separate
// method, SelectModel on SettingsStore, since callers need to resolve
// the model *before* they know what modelID to pass in here.
func (r *Resolver) Resolve(ctx context.Context, in Input) (Resolved, error) {
	descriptor, err := r.cfg.Model(in.ProviderID, in.ModelID)
	if err != nil {
		return Resolved{}, gatewayerr.Wrap(gatewayerr.KindSetup, err, "")
	}

	perModel, err := r.settings.PerModel(ctx, in.ProviderID, in.ModelID)
	if err != nil {
		return Resolved{}, gatewayerr.Wrap(gatewayerr.KindSetup, err, "")
	}
	platform, err := r.settings.Platform(ctx)
	if err != nil {
		return Resolved{}, gatewayerr.Wrap(gatewayerr.KindSetup, err, "")
	}

	// Precedence: per-model user > platform user > descriptor defaults.
	effective := merge(platform.Overrides, perModel)

	out := Resolved{
		Model:                     descriptor.ID,
		ParameterStyle:            descriptor.ParameterStyle,
		TokenParameter:            descriptor.TokenParameter,
		MaxTokens:                 descriptor.MaxTokens,
		ContextWindow:             descriptor.ContextWindow,
		ConversationHistory:       in.ConversationHistory,
	}

	// Step 4: temperature.
	supportsTemperature := descriptor.SupportsTemperature == nil || *descriptor.SupportsTemperature
	includeTemperature := true // default per spec
	if effective.IncludeTemperature != nil {
		includeTemperature = *effective.IncludeTemperature
	}
	if supportsTemperature && includeTemperature {
		if effective.Temperature != nil {
			out.Temperature = effective.Temperature
		} else {
			out.Temperature = nil
		}
	}

	// Step 5: topP.
	supportsTopP := descriptor.SupportsTopP != nil && *descriptor.SupportsTopP
	includeTopP := false // default per spec
	if effective.IncludeTopP != nil {
		includeTopP = *effective.IncludeTopP
	}
	if supportsTopP && includeTopP {
		if effective.TopP != nil {
			out.TopP = effective.TopP
		}
	}

	// Step 6: system prompt, via the "effective support" definition.
	platformHasSystemPrompt := platform.HasSystemPrompt == nil || *platform.HasSystemPrompt
	descriptorSupportsSystemPrompt := descriptor.SupportsSystemPrompt == nil || *descriptor.SupportsSystemPrompt
	effectiveSystemPromptSupport := platformHasSystemPrompt && descriptorSupportsSystemPrompt
	out.ModelSupportsSystemPrompt = effectiveSystemPromptSupport

	if effective.SystemPrompt != nil && *effective.SystemPrompt != "" {
		if effectiveSystemPromptSupport {
			out.SystemPrompt = *effective.SystemPrompt
		} else {
			log.Printf("params: dropping system prompt for %s/%s: system prompts not supported", in.ProviderID, in.ModelID)
		}
	}

	return out, nil
}
