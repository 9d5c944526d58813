package voyage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"docrag/internal/embedding"
	"docrag/internal/errs"
	"docrag/internal/models"
)

const (
	DefaultBaseURL = "https://api.voyageai.com/v1"
	DefaultModel   = "voyage-3-large"
)

type Options struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	// MinInterval spaces consecutive requests; zero disables pacing.
	MinInterval time.Duration
	HTTPClient  *http.Client
}

// Client calls the Voyage AI embeddings endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	dim     int
	http    *http.Client
	minGap  time.Duration

	mu      sync.Mutex
	lastReq time.Time
}

func New(opt Options) *Client {
	base := opt.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	model := opt.Model
	if model == "" {
		model = DefaultModel
	}
	hc := opt.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  opt.APIKey,
		model:   model,
		dim:     opt.Dimension,
		http:    hc,
		minGap:  opt.MinInterval,
	}
}

type embedRequest struct {
	Input           []string `json:"input"`
	Model           string   `json:"model"`
	InputType       string   `json:"input_type"`
	OutputDimension int      `json:"output_dimension,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed implements embedding.Embedder.
func (c *Client) Embed(ctx context.Context, texts []string, inputType models.InputType) (embedding.Result, error) {
	const op = "voyage.embed"
	if len(texts) == 0 {
		return embedding.Result{Model: c.model}, nil
	}
	if !embedding.ValidInputType(inputType) {
		return embedding.Result{}, errs.Inputf(op, "unknown input type %q", inputType)
	}
	if c.apiKey == "" {
		return embedding.Result{}, errs.Providerf(op, "VOYAGE_API_KEY not set")
	}
	body, err := json.Marshal(embedRequest{
		Input:           texts,
		Model:           c.model,
		InputType:       string(inputType),
		OutputDimension: c.dim,
	})
	if err != nil {
		return embedding.Result{}, errs.Input(op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return embedding.Result{}, errs.Provider(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.do(req)
	if err != nil {
		return embedding.Result{}, errs.Provider(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return embedding.Result{}, errs.Provider(op, fmt.Errorf("embeddings http %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}
	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return embedding.Result{}, errs.Provider(op, fmt.Errorf("decode response: %w", err))
	}
	// the API reports each vector's input position; do not rely on array order
	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	res := embedding.Result{Model: out.Model, TotalTokens: out.Usage.TotalTokens}
	res.Vectors = make([][]float32, 0, len(out.Data))
	for _, d := range out.Data {
		res.Vectors = append(res.Vectors, d.Embedding)
	}
	if res.Model == "" {
		res.Model = c.model
	}
	if c.dim > 0 {
		if err := embedding.Check(op, texts, res, c.dim); err != nil {
			return embedding.Result{}, err
		}
	} else if len(res.Vectors) != len(texts) {
		return embedding.Result{}, errs.Providerf(op, "got %d vectors for %d inputs", len(res.Vectors), len(texts))
	}
	return res, nil
}

// do paces requests by the configured minimum interval. There is no retry:
// rate limits and server errors surface to the caller as they are.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.minGap > 0 {
		c.mu.Lock()
		since := time.Since(c.lastReq)
		if since < c.minGap {
			wait := c.minGap - since
			c.mu.Unlock()
			select {
			case <-time.After(wait):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
			c.mu.Lock()
		}
		c.lastReq = time.Now()
		c.mu.Unlock()
	}
	return c.http.Do(req)
}
