package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"rexi-api/internal/config"
)

// OpenAIClient 使用官方 SDK 访问模型列表与图片接口
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient 根据提供商配置创建客户端
func NewOpenAIClient(p config.ProviderConfig) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(p.APIKey)}
	if p.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.BaseURL))
	}
	if p.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(p.Timeout))
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

// ListModels 返回提供商可用的模型 ID
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// GeneratedImage 图片接口返回的原始数据
type GeneratedImage struct {
	Data        []byte
	ContentType string
	URL         string
}

// GenerateImage 调用图片接口生成单张图片
func (c *OpenAIClient) GenerateImage(ctx context.Context, modelID, size, prompt string, timeout time.Duration) (*GeneratedImage, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	params := openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(modelID),
		N:      openai.Int(1),
	}
	if size != "" {
		params.Size = openai.ImageGenerateParamsSize(size)
	}
	if modelID != string(openai.ImageModelGPTImage1) {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}

	resp, err := c.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("generate image: empty response")
	}

	img := resp.Data[0]
	if img.B64JSON == "" {
		if img.URL == "" {
			return nil, errors.New("generate image: no image data")
		}
		return &GeneratedImage{URL: img.URL}, nil
	}
	data, err := base64.StdEncoding.DecodeString(img.B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &GeneratedImage{Data: data, ContentType: "image/png"}, nil
}
