package credential

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"

	"github.com/devon-ng/gatewaycore/internal/config"
	"github.com/devon-ng/gatewaycore/internal/gatewayerr"
	"github.com/devon-ng/gatewaycore/internal/params"
	"github.com/devon-ng/gatewaycore/internal/provider"
)

// NewValidator builds the Validator a Store uses to back §4.4's
// validateCredentials operation: it asks the provider's own adapter for
// its minimal legal request (BuildValidationRequest), executes it with
// client, and reports acceptance as an HTTP-status check. On a non-OK
// response it reads the body, extracts the provider's error detail, and
// logs it before returning false — the caller only ever sees the bool.
func NewValidator(cfg *config.Config, registry *provider.Registry, client *http.Client) Validator {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, providerID config.ProviderID, creds Credentials) bool {
		providerCfg, err := cfg.Provider(providerID)
		if err != nil {
			return false
		}

		modelID := providerCfg.DefaultModel
		descriptor, err := cfg.Model(providerID, modelID)
		if err != nil {
			return false
		}

		adapter, err := registry.New(providerID, providerCfg.Endpoint)
		if err != nil {
			return false
		}
		adapter.Initialize(creds.APIKey)

		resolved := params.Resolved{
			Model:          descriptor.ID,
			ParameterStyle: descriptor.ParameterStyle,
			TokenParameter: descriptor.TokenParameter,
			MaxTokens:      descriptor.MaxTokens,
			ContextWindow:  descriptor.ContextWindow,
		}

		req, err := adapter.BuildValidationRequest(resolved)
		if err != nil {
			return false
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
		if err != nil {
			return false
		}
		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			log.Printf("credential validation failed for %s: %s", providerID, gatewayerr.Extract(resp.StatusCode, resp.Status, body))
			return false
		}

		return true
	}
}
