// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package embed

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

// DefaultModel is used when no embedding model is configured.
const DefaultModel = "text-embedding-3-small"

// modelDimensions maps known OpenAI embedding models to their native size.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config holds OpenAI embedder configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional, useful for testing against a mock server
	Model      string
	Dimensions int // overrides the model's native dimension (text-embedding-3-* only)
}

// Compile-time interface check.
var _ Embedder = (*OpenAI)(nil)

// OpenAI implements Embedder using the OpenAI embeddings API.
type OpenAI struct {
	client openaisdk.Client
	model  string
	dims   int
}

// NewOpenAI creates an OpenAI embedder. Returns an error if the API key is
// missing.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, scrivoerr.New(scrivoerr.CodeEmbedRequestInvalid, "openai: missing api_key in config")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	dims := cfg.Dimensions
	if dims == 0 {
		var ok bool
		dims, ok = modelDimensions[cfg.Model]
		if !ok {
			dims = 1536
		}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client: openaisdk.NewClient(opts...),
		model:  cfg.Model,
		dims:   dims,
	}, nil
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, scrivoerr.New(scrivoerr.CodeEmbedUnavailable, "openai: no embedding returned")
	}
	return vecs[0], nil
}

func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(o.model),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	// Only text-embedding-3-* models accept a dimensions override.
	if o.model == "text-embedding-3-small" || o.model == "text-embedding-3-large" {
		params.Dimensions = openaisdk.Int(int64(o.dims))
	}

	res, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, scrivoerr.Wrap(err, scrivoerr.CodeEmbedUnavailable, "openai: embeddings request failed")
	}

	vecs := make([][]float32, len(texts))
	for _, data := range res.Data {
		if data.Index < 0 || int(data.Index) >= len(texts) {
			return nil, scrivoerr.Errorf(scrivoerr.CodeEmbedUnavailable, "openai: embedding index %d out of range", data.Index)
		}
		vec := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vec[i] = float32(v)
		}
		vecs[data.Index] = vec
	}
	for i, vec := range vecs {
		if vec == nil {
			return nil, scrivoerr.Errorf(scrivoerr.CodeEmbedUnavailable, "openai: missing embedding for input %d", i)
		}
		if len(vec) != o.dims {
			return nil, scrivoerr.Errorf(scrivoerr.CodeEmbedUnavailable,
				"openai: embedding has %d dimensions, expected %d", len(vec), o.dims)
		}
	}

	return vecs, nil
}

func (o *OpenAI) Dimensions() int { return o.dims }
