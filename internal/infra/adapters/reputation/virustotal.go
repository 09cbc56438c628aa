// File: internal/infra/adapters/reputation/virustotal.go
package reputation

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/adapter"
)

const (
	DefaultBaseURL = "https://www.virustotal.com/api/v3"
	maxBodyBytes   = 4 << 20
)

// Compile-time check
var _ adapter.ReputationSource = (*VirusTotalSource)(nil)

// VirusTotalSource reads the last analysis of a URL from the VirusTotal v3 API.
type VirusTotalSource struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewVirusTotalSource(apiKey, baseURL string, client *http.Client) (*VirusTotalSource, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: virustotal api key is empty", domain.ErrInvalidArgument)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &VirusTotalSource{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}, nil
}

func (s *VirusTotalSource) Name() string { return "virustotal" }

// URLID is the identifier VirusTotal uses for a URL: unpadded URL-safe base64.
func URLID(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

func (s *VirusTotalSource) Lookup(ctx context.Context, rawURL string) (model.ReputationReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/urls/"+URLID(rawURL), nil)
	if err != nil {
		return model.ReputationReport{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-apikey", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return model.ReputationReport{}, fmt.Errorf("%w: virustotal: %v", domain.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return model.ReputationReport{}, fmt.Errorf("%w: virustotal read body: %v", domain.ErrRemoteUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.ReputationReport{}, fmt.Errorf("%w: virustotal status %d", domain.ErrRemoteUnavailable, resp.StatusCode)
	}
	return parseReport(rawURL, body)
}

func parseReport(rawURL string, body []byte) (model.ReputationReport, error) {
	if !gjson.ValidBytes(body) {
		return model.ReputationReport{}, fmt.Errorf("%w: virustotal returned invalid json", domain.ErrMalformedResponse)
	}
	attrs := gjson.GetBytes(body, "data.attributes")
	stats := attrs.Get("last_analysis_stats")
	if !stats.Exists() {
		return model.ReputationReport{}, fmt.Errorf("%w: virustotal response has no analysis stats", domain.ErrMalformedResponse)
	}

	report := model.ReputationReport{
		URL: rawURL,
		Stats: model.DetectionStats{
			Malicious:  int(stats.Get("malicious").Int()),
			Suspicious: int(stats.Get("suspicious").Int()),
			Harmless:   int(stats.Get("harmless").Int()),
			Undetected: int(stats.Get("undetected").Int()),
		},
	}

	// categories maps vendor name to that vendor's label; keep the distinct labels.
	seen := map[string]struct{}{}
	attrs.Get("categories").ForEach(func(_, v gjson.Result) bool {
		c := strings.TrimSpace(v.String())
		if c == "" {
			return true
		}
		if _, dup := seen[c]; !dup {
			seen[c] = struct{}{}
			report.Categories = append(report.Categories, c)
		}
		return true
	})
	sort.Strings(report.Categories)
	return report, nil
}
