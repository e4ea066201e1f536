// Package llmclient implements the two external HTTP surfaces the Vault
// treats as a black-box LLM endpoint: embeddings and chat completion. Both
// are raw bearer-token JSON POSTs, following the teacher's own
// internal/embedding/client.go rather than a vendor SDK.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vaultlabs/vlt/internal/vaulterrors"
)

// Client talks to one configured chat+embedding endpoint.
type Client struct {
	httpClient   *http.Client
	ChatBaseURL  string
	ChatAPIKey   string
	EmbedBaseURL string
	EmbedAPIKey  string
}

// New builds a Client. Base URLs should not include a trailing slash.
func New(chatBaseURL, chatAPIKey, embedBaseURL, embedAPIKey string) *Client {
	return &Client{
		httpClient:   http.DefaultClient,
		ChatBaseURL:  chatBaseURL,
		ChatAPIKey:   chatAPIKey,
		EmbedBaseURL: embedBaseURL,
		EmbedAPIKey:  embedAPIKey,
	}
}

// Available reports whether a chat API key is configured — the signal
// retrievers and the reranker use to decide whether LLM-backed paths are
// usable at all.
func (c *Client) Available() bool {
	return c != nil && c.ChatAPIKey != ""
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed calls POST {base}/embeddings and returns one vector per input,
// in order.
func (c *Client) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embedRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrLLM, fmt.Errorf("marshal embed request: %w", err))
	}

	var er embedResponse
	if err := c.post(ctx, c.EmbedBaseURL+"/embeddings", c.EmbedAPIKey, body, &er); err != nil {
		return nil, err
	}
	if len(er.Data) != len(inputs) {
		return nil, vaulterrors.Wrap(vaulterrors.ErrLLM,
			fmt.Errorf("embeddings: got %d vectors, want %d", len(er.Data), len(inputs)))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

// ChatMessage is one entry of a chat-completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// ChatResult is the distilled outcome of a chat completion call.
type ChatResult struct {
	Content     string
	TotalTokens int
}

// Complete calls POST {base}/chat/completions with the given timeout and
// returns the first choice's content plus total token usage.
func (c *Client) Complete(ctx context.Context, model string, messages []ChatMessage, temperature float64, maxTokens int, timeout time.Duration) (ChatResult, error) {
	body, err := json.Marshal(chatRequest{Model: model, Messages: messages, Temperature: temperature, MaxTokens: maxTokens})
	if err != nil {
		return ChatResult{}, vaulterrors.Wrap(vaulterrors.ErrLLM, fmt.Errorf("marshal chat request: %w", err))
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cr chatResponse
	if err := c.postCtx(cctx, c.ChatBaseURL+"/chat/completions", c.ChatAPIKey, body, &cr); err != nil {
		return ChatResult{}, err
	}
	if len(cr.Choices) == 0 {
		return ChatResult{}, vaulterrors.Wrap(vaulterrors.ErrLLM, fmt.Errorf("chat completion returned no choices"))
	}
	return ChatResult{Content: cr.Choices[0].Message.Content, TotalTokens: cr.Usage.TotalTokens}, nil
}

func (c *Client) post(ctx context.Context, url, apiKey string, body []byte, out any) error {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return c.postCtx(cctx, url, apiKey, body, out)
}

func (c *Client) postCtx(ctx context.Context, url, apiKey string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrLLM, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrLLM, fmt.Errorf("request %s: %w", url, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrLLM, fmt.Errorf("read response body: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		return vaulterrors.Wrap(vaulterrors.ErrLLM, fmt.Errorf("%s: status %s: %s", url, resp.Status, string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrLLM, fmt.Errorf("parse response from %s: %w", url, err))
	}
	return nil
}
