// Package vision отправляет фотографии комнаты в Anthropic Messages API
// и разбирает структурированную оценку состояния. Основная модель может
// быть перегружена, тогда запрос повторяется на резервной.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dataweaveai/condition-report/internal/models"
)

const (
	defaultMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion   = "2023-06-01"
	maxTokens          = 1000
)

type Client struct {
	apiKey        string
	primaryModel  string
	fallbackModel string
	messagesURL   string
	httpClient    *http.Client
}

func New(apiKey, primaryModel, fallbackModel string) *Client {
	return &Client{
		apiKey:        apiKey,
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
		messagesURL:   defaultMessagesURL,
		httpClient:    &http.Client{Timeout: 90 * time.Second},
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnalyzeRoom оценивает состояние комнаты по фотографиям. Фотографии
// передаются как JPEG. Сначала используется основная модель, при её
// отказе запрос уходит на резервную.
func (c *Client) AnalyzeRoom(ctx context.Context, roomName, inspectionType string, photos [][]byte) (*models.RoomAnalysis, error) {
	const op = "vision.AnalyzeRoom"

	blocks := make([]contentBlock, 0, len(photos)+1)
	for _, photo := range photos {
		blocks = append(blocks, contentBlock{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: "image/jpeg",
				Data:      base64.StdEncoding.EncodeToString(photo),
			},
		})
	}
	blocks = append(blocks, contentBlock{Type: "text", Text: buildPrompt(roomName, inspectionType)})

	var lastErr error
	for _, model := range []string{c.primaryModel, c.fallbackModel} {
		text, err := c.sendMessages(ctx, model, blocks)
		if err != nil {
			lastErr = err
			continue
		}
		return parseAnalysis(text), nil
	}
	return nil, fmt.Errorf("%s: %w", op, lastErr)
}

func (c *Client) sendMessages(ctx context.Context, model string, blocks []contentBlock) (string, error) {
	const op = "vision.sendMessages"

	body, err := json.Marshal(messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: blocks}},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("%s: status %d", op, resp.StatusCode)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%s: empty response", op)
}
