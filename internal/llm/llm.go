package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/TobiSchelling/townhall/internal/config"
)

// Provider is the interface for LLM providers.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// OllamaProvider is a local Ollama LLM provider reached over HTTP.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider. A zero timeout leaves
// requests unbounded.
func NewOllamaProvider(model, baseURL string, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	log.Printf("Ollama model %q not found", o.Model)
	return false
}

// Generate sends a prompt to Ollama and returns the response.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	options := map[string]any{}
	if maxTokens > 0 {
		options["num_predict"] = maxTokens
	}
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream":  false,
		"options": options,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return result.Message.Content, nil
}

// CreateProvider creates an LLM provider based on configuration.
func CreateProvider(m config.Model) (Provider, error) {
	timeout := time.Duration(m.Timeout) * time.Second

	switch strings.ToLower(m.Provider) {
	case "", "command":
		p := NewCommandProvider(m.Command, m.Name, timeout)
		if !p.IsConfigured() {
			log.Printf("%s not found on PATH; every row will fail until it is installed", p.Binary)
		}
		log.Printf("Using %s run with model: %s", p.Binary, m.Name)
		return p, nil
	case "ollama":
		p := NewOllamaProvider(m.Name, m.OllamaURL, timeout)
		if !p.IsConfigured() {
			log.Printf("Ollama at %s does not report model %s; rows will fail until it does", m.OllamaURL, m.Name)
		}
		log.Printf("Using Ollama API with model: %s", m.Name)
		return p, nil
	case "openai":
		p, err := NewOpenAIProvider(m.OpenAIModel)
		if err != nil {
			return nil, err
		}
		if !p.IsConfigured() {
			return nil, fmt.Errorf("OpenAI provider selected but OPENAI_API_KEY is not set")
		}
		log.Printf("Using OpenAI with model: %s", m.OpenAIModel)
		return p, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", m.Provider)
	}
}
