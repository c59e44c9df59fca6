package internal

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/DreamCats/caseindex/internal/config"
)

// LoadEnv reads .env from the working directory when present.
// Variables already set in the environment win.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LoadConfig reads the YAML config from configPath, or the default location.
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// PrintConfigExample prints a minimal configuration to stderr.
func PrintConfigExample() {
	configPath, _ := config.DefaultPath()

	fmt.Fprintf(os.Stderr, `Create a configuration file at %s:

corpus:
  path: /path/to/case/documents
  include:
    - "**/*.xml"

# Embedding service (required)
embedding:
  provider: tei                      # "tei" | "openai"
  endpoint: http://127.0.0.1:8080
  model: sentence-transformers/all-MiniLM-L6-v2
  dimensions: 384

# Relevance model (required)
rerank:
  provider: tei
  endpoint: http://127.0.0.1:8081

# For OpenAI embeddings, use:
# embedding:
#   provider: openai
#   api_key: your-openai-api-key   # or CASEINDEX_EMBEDDING_API_KEY / .env
#   model: text-embedding-3-small
#   dimensions: 1536

Usage:
  1. Create the config file
  2. Run: caseindex index
  3. Ask: caseindex ask
`, configPath)
}
