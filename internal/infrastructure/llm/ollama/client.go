package ollama

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL     string
	genModel    string
	visionModel string
	embedModel  string
	httpClient  *http.Client
	executor    *resilience.Executor
}

type Options struct {
	BaseURL     string
	GenModel    string
	VisionModel string
	EmbedModel  string
	Timeout     time.Duration

	// Executor is optional; without it calls run once with no retry or
	// breaker.
	Executor *resilience.Executor
}

func New(options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(options.BaseURL, "/"),
		genModel:    options.GenModel,
		visionModel: options.VisionModel,
		embedModel:  options.EmbedModel,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    options.Executor,
	}
}

func (c *Client) do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return wrapTemporaryIfNeeded(operation, fn(ctx))
	}
	err := c.executor.Execute(ctx, operation, fn, classifyOllamaError)
	return wrapTemporaryIfNeeded(operation, err)
}

func (c *Client) generateText(ctx context.Context, operation, model, prompt string, images []string) (string, error) {
	reqBody := map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	}
	if len(images) > 0 {
		reqBody["images"] = images
	}

	var response struct {
		Response string `json:"response"`
	}
	err := c.do(ctx, operation, func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, operation)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.do(ctx, "ollama.embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed returned %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, bundle *domain.ContextBundle) (string, error) {
	return g.client.generateText(ctx, "ollama.generate", g.client.genModel, buildAnswerPrompt(question, bundle), nil)
}

// Describer narrates images with the vision model. The limiter caps the
// request rate so a burst of image-heavy documents cannot starve answer
// generation on a shared model server.
type Describer struct {
	client  *Client
	storage ports.ObjectStorage
	limiter *rate.Limiter
}

func NewDescriber(client *Client, storage ports.ObjectStorage, requestsPerSecond float64, burst int) *Describer {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return &Describer{client: client, storage: storage, limiter: limiter}
}

func (d *Describer) Describe(ctx context.Context, imagePath string) (string, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	reader, err := d.storage.Open(ctx, imagePath)
	if err != nil {
		return "", domain.WrapError(domain.ErrDescription, "open image", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", domain.WrapError(domain.ErrDescription, "read image", err)
	}

	encoded := base64.StdEncoding.EncodeToString(raw)
	text, err := d.client.generateText(ctx, "ollama.describe", d.client.visionModel, visionPrompt, []string{encoded})
	if err != nil {
		return "", domain.WrapError(domain.ErrDescription, "describe image", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrDescription, "describe image", errors.New("empty response"))
	}
	return text, nil
}
