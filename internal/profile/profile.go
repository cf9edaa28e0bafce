// Package profile holds the runtime configuration of the server.
package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uiucchat/chatcore/internal/llm"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo".
	Mode string
	// Addr is the binding address for server.
	Addr string
	// Port is the binding port for server.
	Port int
	// Data is the data directory.
	Data string
	// Driver is the database driver: sqlite, mysql or postgres.
	Driver string
	// DSN points to where the database is stored.
	DSN string
	// Version is the current version of the server.
	Version string

	// TokenizerEncoding names the tiktoken encoding used for budgeting.
	TokenizerEncoding string
	// TokenReserve is held back from every model's context window.
	TokenReserve int
	// ChatTimeout bounds a whole chat request.
	ChatTimeout time.Duration
	// StopCooldown is how long a stopped conversation stays marked as aborted.
	StopCooldown time.Duration
	// RateLimit is the sustained requests per second allowed per API key; 0 disables limiting.
	RateLimit float64
	RateBurst int
	// AutoTitle asks the model for a title after the first answer of a new conversation.
	AutoTitle bool
	// RetrievalTokenLimit bounds the contexts requested from the vector store.
	RetrievalTokenLimit int

	OpenAIAPIKey  string
	OpenAIBaseURL string

	AzureAPIKey     string
	AzureEndpoint   string
	AzureAPIVersion string
	// AzureDeployments is a comma-separated list of model=deployment pairs.
	AzureDeployments string

	AnthropicAPIKey string

	OllamaURL string

	VLLMURL    string
	VLLMAPIKey string

	// EmbeddingModel is the OpenAI embedding model used by the vector store.
	EmbeddingModel string

	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3PresignTTL time.Duration
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", fmt.Errorf("unable to access data folder %s: %w", dataDir, err)
	}
	return dataDir, nil
}

// Validate normalizes the profile and fills in derived defaults.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/chatcore"
		if _, err := os.Stat(p.Data); os.IsNotExist(err) {
			if err := os.MkdirAll(p.Data, 0770); err != nil {
				slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
				return err
			}
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("chatcore_%s.db", p.Mode))
	}
	if p.TokenReserve <= 0 {
		p.TokenReserve = 1500
	}
	if p.ChatTimeout <= 0 {
		p.ChatTimeout = 5 * time.Minute
	}
	if p.StopCooldown <= 0 {
		p.StopCooldown = 2 * time.Second
	}
	if p.RetrievalTokenLimit <= 0 {
		p.RetrievalTokenLimit = 12000
	}
	if p.S3PresignTTL <= 0 {
		p.S3PresignTTL = time.Hour
	}
	return nil
}

// ProviderConfigs derives the per-provider settings the router needs.
func (p *Profile) ProviderConfigs() llm.ProviderConfigs {
	return llm.ProviderConfigs{
		llm.ProviderOpenAI: {
			Enabled: p.OpenAIAPIKey != "",
			APIKey:  p.OpenAIAPIKey,
			BaseURL: p.OpenAIBaseURL,
		},
		llm.ProviderAzure: {
			Enabled:     p.AzureAPIKey != "" && p.AzureEndpoint != "",
			APIKey:      p.AzureAPIKey,
			BaseURL:     p.AzureEndpoint,
			APIVersion:  p.AzureAPIVersion,
			Deployments: parsePairs(p.AzureDeployments),
		},
		llm.ProviderAnthropic: {
			Enabled: p.AnthropicAPIKey != "",
			APIKey:  p.AnthropicAPIKey,
		},
		llm.ProviderOllama: {
			Enabled: p.OllamaURL != "",
			BaseURL: p.OllamaURL,
		},
		llm.ProviderVLLM: {
			Enabled: p.VLLMURL != "",
			BaseURL: p.VLLMURL,
			APIKey:  p.VLLMAPIKey,
		},
	}
}

func parsePairs(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" && v != "" {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out
}
