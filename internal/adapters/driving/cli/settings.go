package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// settingsInput is where interactive prompts read from.
var settingsInput io.Reader = os.Stdin

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the embedding provider, the re-ranker, fusion weights
and other options.

Use subcommands to configure specific settings or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all settings step by step.`,
	RunE:  runSettingsWizard,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long: `Configure the embedding provider for semantic search.
The index dimension follows the chosen model.`,
	RunE: runSettingsEmbedding,
}

var settingsRerankCmd = &cobra.Command{
	Use:   "rerank",
	Short: "Configure re-rank endpoint",
	Long: `Configure a Cohere, Jina or TEI compatible /rerank endpoint.
Queries only re-rank when they ask for it (--rerank).`,
	RunE: runSettingsRerank,
}

var settingsWeightsCmd = &cobra.Command{
	Use:   "weights [vector] [keyword]",
	Short: "Set default fusion weights",
	Long: `Set the default weights of the vector and keyword scores.
Weights must be non-negative and sum to a positive number.

Examples:
  sheetdex settings weights 0.5 0.5   # balanced hybrid (default)
  sheetdex settings weights 0 1       # keyword only`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsWeights,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsRerankCmd)
	settingsCmd.AddCommand(settingsWeightsCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	// Embedding settings
	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	if settings.Embedding.Provider != domain.AIProviderNone {
		cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	}
	if settings.Embedding.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		if settings.Embedding.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Embedding.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	cmd.Printf("  Batch: %d texts, %s window, %d attempts\n",
		settings.Embedding.BatchSize, settings.Embedding.BatchWindow, settings.Embedding.MaxAttempts)
	status := "configured"
	if !settings.Embedding.IsConfigured() {
		status = "not configured (keyword-only search)"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	// Rerank settings
	cmd.Println("[Rerank]")
	cmd.Printf("  Provider: %s\n", settings.Rerank.Provider.Description())
	if settings.Rerank.IsConfigured() {
		cmd.Printf("  Base URL: %s\n", settings.Rerank.BaseURL)
		if settings.Rerank.Model != "" {
			cmd.Printf("  Model: %s\n", settings.Rerank.Model)
		}
		if settings.Rerank.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Rerank.APIKey))
		}
	}
	cmd.Printf("  Candidates: %d\n", settings.Rerank.Candidates)
	cmd.Println()

	// Query settings
	cmd.Println("[Query]")
	cmd.Printf("  Top K: %d\n", settings.Query.TopK)
	cmd.Printf("  Weights: vector %g, keyword %g\n", settings.Query.Weights.Vector, settings.Query.Weights.Keyword)
	cmd.Printf("  Normalization: %s\n", settings.Query.Normalization)
	cmd.Printf("  Timeout: %s\n", settings.Query.Timeout)
	cmd.Printf("  BM25: k1 %g, b %g\n", settings.BM25.K1, settings.BM25.B)
	cmd.Println()

	// Storage settings
	cmd.Println("[Storage]")
	cmd.Printf("  Chunks: %s\n", settings.Storage.Backend)
	cmd.Printf("  Embedding cache: %s\n", settings.Storage.EmbeddingCache)
	cmd.Println()

	// Validation
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'sheetdex settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("sheetdex Settings Wizard")
	cmd.Println("========================")
	cmd.Println()

	reader := bufio.NewReader(settingsInput)

	// Step 1: Embedding provider
	cmd.Println("Step 1: Embedding Provider")
	cmd.Println("--------------------------")
	cmd.Println("Semantic search needs an embedding provider. Without one, queries run keyword-only.")
	cmd.Print("Configure an embedding provider? [Y/n]: ")
	if answer := strings.ToLower(readLine(reader)); answer != "n" && answer != "no" {
		if err := configureEmbeddingProvider(cmd, reader); err != nil {
			return err
		}
	} else {
		cmd.Println("Skipped.")
		cmd.Println()
	}

	// Step 2: Rerank endpoint
	cmd.Println("Step 2: Re-rank Endpoint")
	cmd.Println("------------------------")
	cmd.Print("Configure a re-rank endpoint? [y/N]: ")
	if answer := strings.ToLower(readLine(reader)); answer == "y" || answer == "yes" {
		if err := configureRerankProvider(cmd, reader); err != nil {
			return err
		}
	} else {
		cmd.Println("Skipped.")
		cmd.Println()
	}

	// Step 3: Fusion weights
	cmd.Println("Step 3: Fusion Weights")
	cmd.Println("----------------------")
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	cmd.Printf("Vector weight [%g]: ", settings.Query.Weights.Vector)
	vector := parseWeight(readLine(reader), settings.Query.Weights.Vector)
	cmd.Printf("Keyword weight [%g]: ", settings.Query.Weights.Keyword)
	keyword := parseWeight(readLine(reader), settings.Query.Weights.Keyword)
	if err := settingsService.SetWeights(domain.Weights{Vector: vector, Keyword: keyword}); err != nil {
		return fmt.Errorf("failed to set weights: %w", err)
	}
	cmd.Println()

	// Final validation
	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(settingsInput)
	return configureEmbeddingProvider(cmd, reader)
}

func runSettingsRerank(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(settingsInput)
	return configureRerankProvider(cmd, reader)
}

func runSettingsWeights(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	vector, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid vector weight %q: %w", args[0], err)
	}
	keyword, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid keyword weight %q: %w", args[1], err)
	}

	if err := settingsService.SetWeights(domain.Weights{Vector: vector, Keyword: keyword}); err != nil {
		return fmt.Errorf("failed to set weights: %w", err)
	}

	cmd.Printf("Fusion weights set to vector %g, keyword %g\n", vector, keyword)
	return nil
}

func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultEmbeddingModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n", selectedProvider.Description(), model)
	cmd.Println("Re-ingest workbooks if the model's dimension changed.")
	cmd.Println()
	return nil
}

func configureRerankProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Print("Enter /rerank base URL (empty to disable): ")
	baseURL := readLine(reader)
	if baseURL == "" {
		if err := settingsService.SetRerankProvider(domain.AIProviderNone, "", "", ""); err != nil {
			return fmt.Errorf("failed to disable re-ranking: %w", err)
		}
		cmd.Println("Re-ranking disabled.")
		cmd.Println()
		return nil
	}

	cmd.Print("Enter model name (optional): ")
	model := readLine(reader)
	cmd.Print("Enter API key (optional): ")
	apiKey := readPassword(reader)
	cmd.Println()

	if err := settingsService.SetRerankProvider(domain.AIProviderHTTP, baseURL, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure re-rank endpoint: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateRerankConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("rerank configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Re-rank endpoint configured: %s\n", baseURL)
	cmd.Println()
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func parseWeight(input string, defaultVal float64) float64 {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(input, 64)
	if err != nil || val < 0 {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, or a plain line otherwise.
func readPassword(reader *bufio.Reader) string {
	if f, ok := settingsInput.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
