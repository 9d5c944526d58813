// Package openai embeds texts through an OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"net/http"
	"sort"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"docrag/internal/embedding"
	"docrag/internal/errs"
	"docrag/internal/models"
)

const DefaultModel = "text-embedding-3-small"

type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimension  int
	HTTPClient *http.Client
}

type Client struct {
	client *goopenai.Client
	model  string
	dim    int
	hasKey bool
}

func New(opt Options) *Client {
	cfg := goopenai.DefaultConfig(opt.APIKey)
	if opt.BaseURL != "" {
		cfg.BaseURL = opt.BaseURL
	}
	if opt.HTTPClient != nil {
		cfg.HTTPClient = opt.HTTPClient
	} else {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	model := opt.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
		dim:    opt.Dimension,
		hasKey: opt.APIKey != "",
	}
}

// Embed implements embedding.Embedder. OpenAI has no input-type hint, so
// documents and queries are embedded the same way.
func (c *Client) Embed(ctx context.Context, texts []string, inputType models.InputType) (embedding.Result, error) {
	const op = "openai.embed"
	if len(texts) == 0 {
		return embedding.Result{Model: c.model}, nil
	}
	if !embedding.ValidInputType(inputType) {
		return embedding.Result{}, errs.Inputf(op, "unknown input type %q", inputType)
	}
	if !c.hasKey {
		return embedding.Result{}, errs.Providerf(op, "OPENAI_API_KEY not set")
	}
	resp, err := c.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(c.model),
		Dimensions: c.dim,
	})
	if err != nil {
		return embedding.Result{}, errs.Provider(op, err)
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	res := embedding.Result{Model: string(resp.Model), TotalTokens: resp.Usage.TotalTokens}
	if res.Model == "" {
		res.Model = c.model
	}
	res.Vectors = make([][]float32, len(data))
	for i, d := range data {
		res.Vectors[i] = d.Embedding
	}
	if c.dim > 0 {
		if err := embedding.Check(op, texts, res, c.dim); err != nil {
			return embedding.Result{}, err
		}
	}
	return res, nil
}
