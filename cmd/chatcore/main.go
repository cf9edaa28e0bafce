package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/uiucchat/chatcore/internal/profile"
	"github.com/uiucchat/chatcore/internal/version"
	"github.com/uiucchat/chatcore/server"
	"github.com/uiucchat/chatcore/store"
	"github.com/uiucchat/chatcore/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "chatcore",
		Short: `A course-aware LLM chat backend with cited, streamed answers.`,
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile, err := loadProfile()
			if err != nil {
				slog.Error("failed to load profile", "error", err)
				return
			}
			setupLogger(instanceProfile)

			ctx, cancel := context.WithCancel(context.Background())
			dbDriver, err := db.NewDBDriver(instanceProfile)
			if err != nil {
				cancel()
				slog.Error("failed to create db driver", "error", err)
				return
			}

			storeInstance := store.New(dbDriver, instanceProfile)
			if err := storeInstance.Migrate(ctx); err != nil {
				cancel()
				slog.Error("failed to migrate", "error", err)
				return
			}

			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				cancel()
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			// The default signal sent by the `kill` command is SIGTERM,
			// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)

			if err := s.Start(ctx); err != nil {
				cancel()
				slog.Error("failed to start server", "error", err)
				return
			}

			printGreetings(instanceProfile)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			// Wait for CTRL-C.
			<-ctx.Done()
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)
	viper.SetDefault("tokenizer-encoding", "cl100k_base")
	viper.SetDefault("token-reserve", 1500)
	viper.SetDefault("chat-timeout", 5*time.Minute)
	viper.SetDefault("stop-cooldown", 2*time.Second)
	viper.SetDefault("retrieval-token-limit", 12000)
	viper.SetDefault("embedding-model", "text-embedding-3-small")
	viper.SetDefault("azure-api-version", "2024-06-01")
	viper.SetDefault("s3-presign-ttl", time.Hour)

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver")
	flags.String("dsn", "", "database source name(aka. DSN)")

	flags.String("tokenizer-encoding", "cl100k_base", "tiktoken encoding used for prompt budgeting")
	flags.Int("token-reserve", 1500, "tokens held back from every model context window")
	flags.Duration("chat-timeout", 5*time.Minute, "upper bound on a single chat request")
	flags.Duration("stop-cooldown", 2*time.Second, "how long a stopped conversation stays marked as stopped")
	flags.Float64("rate-limit", 0, "requests per second allowed per client, 0 disables limiting")
	flags.Int("rate-burst", 0, "burst size for the per-client rate limit")
	flags.Bool("auto-title", false, "ask the model to title new conversations")
	flags.Int("retrieval-token-limit", 12000, "token limit for contexts fetched from the vector store")

	flags.String("openai-api-key", "", "server OpenAI API key")
	flags.String("openai-base-url", "", "OpenAI compatible base URL")
	flags.String("azure-api-key", "", "Azure OpenAI API key")
	flags.String("azure-endpoint", "", "Azure OpenAI endpoint")
	flags.String("azure-api-version", "2024-06-01", "Azure OpenAI API version")
	flags.String("azure-deployments", "", "comma-separated model=deployment pairs")
	flags.String("anthropic-api-key", "", "Anthropic API key")
	flags.String("ollama-url", "", "Ollama server URL")
	flags.String("vllm-url", "", "self-hosted vLLM OpenAI compatible base URL")
	flags.String("vllm-api-key", "", "vLLM API key")
	flags.String("embedding-model", "text-embedding-3-small", "embedding model for retrieval")

	flags.String("s3-bucket", "", "bucket holding course documents")
	flags.String("s3-region", "", "bucket region")
	flags.String("s3-endpoint", "", "custom S3 endpoint, enables path-style addressing")
	flags.Duration("s3-presign-ttl", time.Hour, "lifetime of presigned document links")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("chatcore")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

}

func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:                viper.GetString("mode"),
		Addr:                viper.GetString("addr"),
		Port:                viper.GetInt("port"),
		Data:                viper.GetString("data"),
		Driver:              viper.GetString("driver"),
		DSN:                 viper.GetString("dsn"),
		Version:             version.GetCurrentVersion(viper.GetString("mode")),
		TokenizerEncoding:   viper.GetString("tokenizer-encoding"),
		TokenReserve:        viper.GetInt("token-reserve"),
		ChatTimeout:         viper.GetDuration("chat-timeout"),
		StopCooldown:        viper.GetDuration("stop-cooldown"),
		RateLimit:           viper.GetFloat64("rate-limit"),
		RateBurst:           viper.GetInt("rate-burst"),
		AutoTitle:           viper.GetBool("auto-title"),
		RetrievalTokenLimit: viper.GetInt("retrieval-token-limit"),
		OpenAIAPIKey:        viper.GetString("openai-api-key"),
		OpenAIBaseURL:       viper.GetString("openai-base-url"),
		AzureAPIKey:         viper.GetString("azure-api-key"),
		AzureEndpoint:       viper.GetString("azure-endpoint"),
		AzureAPIVersion:     viper.GetString("azure-api-version"),
		AzureDeployments:    viper.GetString("azure-deployments"),
		AnthropicAPIKey:     viper.GetString("anthropic-api-key"),
		OllamaURL:           viper.GetString("ollama-url"),
		VLLMURL:             viper.GetString("vllm-url"),
		VLLMAPIKey:          viper.GetString("vllm-api-key"),
		EmbeddingModel:      viper.GetString("embedding-model"),
		S3Bucket:            viper.GetString("s3-bucket"),
		S3Region:            viper.GetString("s3-region"),
		S3Endpoint:          viper.GetString("s3-endpoint"),
		S3PresignTTL:        viper.GetDuration("s3-presign-ttl"),
	}
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

func setupLogger(p *profile.Profile) {
	var handler slog.Handler
	if p.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func printGreetings(profile *profile.Profile) {
	if profile.IsDev() {
		println("Development mode is enabled")
		println("DSN: ", profile.DSN)
	}
	fmt.Printf(`---
Server profile
version: %s
data: %s
addr: %s
port: %d
mode: %s
driver: %s
---
`, profile.Version, profile.Data, profile.Addr, profile.Port, profile.Mode, profile.Driver)
}

func main() {
	// Optional .env file for local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
