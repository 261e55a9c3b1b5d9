package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	oracleTimeout        = 30 * time.Second
	codequiryEndpoint    = "https://api.codequiry.com/v1/detect"
	copyleaksAuthURL     = "https://id.copyleaks.com/v3/account/login/api"
	copyleaksDetectURL   = "https://api.copyleaks.com/v3/education/ai/content"
)

// NewCodequiryOracle returns an Oracle backed by the Codequiry AI-detection
// API. An empty apiKey yields an Oracle that always reports ok=false,
// matching llm_adapters.py's call_codequiry behavior of skipping rather
// than failing when CODEQUIRY_API_KEY is unset.
func NewCodequiryOracle(apiKey string) Oracle {
	if apiKey == "" {
		return func(context.Context, string) (float64, bool) { return 0, false }
	}

	client := &http.Client{Timeout: oracleTimeout}

	return func(ctx context.Context, content string) (float64, bool) {
		body, err := json.Marshal(map[string]string{"content": content, "type": "code"})
		if err != nil {
			return 0, false
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, codequiryEndpoint, bytes.NewReader(body))
		if err != nil {
			return 0, false
		}

		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return 0, false
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return 0, false
		}

		var out struct {
			AILikelihood *float64 `json:"ai_likelihood"`
			Score        *float64 `json:"score"`
		}

		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return 0, false
		}

		switch {
		case out.AILikelihood != nil:
			return *out.AILikelihood, true
		case out.Score != nil:
			return *out.Score, true
		default:
			return 0, false
		}
	}
}

// NewCopyleaksOracle returns an Oracle backed by the Copyleaks AI-content
// detection API. It performs the token-exchange login step on every call
// (the pipeline samples at most originLLMSampleSize files per run, so a
// per-call token fetch is not worth caching infrastructure). Missing
// credentials or any transport/auth failure degrade to ok=false.
func NewCopyleaksOracle(email, apiKey string) Oracle {
	if email == "" || apiKey == "" {
		return func(context.Context, string) (float64, bool) { return 0, false }
	}

	client := &http.Client{Timeout: oracleTimeout}

	return func(ctx context.Context, content string) (float64, bool) {
		token, err := copyleaksLogin(ctx, client, email, apiKey)
		if err != nil {
			return 0, false
		}

		body, err := json.Marshal(map[string]string{"content": content, "filename": "snippet.txt"})
		if err != nil {
			return 0, false
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, copyleaksDetectURL, bytes.NewReader(body))
		if err != nil {
			return 0, false
		}

		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return 0, false
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return 0, false
		}

		var out struct {
			AIProbability *float64 `json:"ai_probability"`
		}

		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.AIProbability == nil {
			return 0, false
		}

		return *out.AIProbability, true
	}
}

func copyleaksLogin(ctx context.Context, client *http.Client, email, apiKey string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "key": apiKey})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, copyleaksAuthURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("copyleaks login: status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.AccessToken == "" {
		return "", fmt.Errorf("copyleaks login: no access token")
	}

	return out.AccessToken, nil
}
