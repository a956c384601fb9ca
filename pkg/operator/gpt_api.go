package operator

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/entrhq/designrun/pkg/logging"
)

// APIAnalyzer runs the same design analysis as GPTOperator but through
// the chat completions API instead of a browser. Useful when an API key
// is available and no human needs to watch the conversation.
type APIAnalyzer struct {
	client openai.Client
	model  string
	logger *logging.Logger
}

// NewAPIAnalyzer creates an analyzer for the given model. The key is
// used as-is; resolution from config or environment happens upstream.
func NewAPIAnalyzer(apiKey, model string, logger *logging.Logger) (*APIAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for the API analysis path")
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &APIAnalyzer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger,
	}, nil
}

// Analyze sends the prompt and reference images in a single completion
// request and writes the standard artifact set to outDir.
func (a *APIAnalyzer) Analyze(ctx context.Context, prompt string, images []string, outDir string) (*GPTResult, error) {
	result := &GPTResult{StartedMs: nowMs(), SendMethod: "api", CopySource: "api"}

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
	}
	for _, img := range images {
		dataURL, err := encodeImageDataURL(img)
		if err != nil {
			return nil, err
		}
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL,
		}))
	}

	a.logger.Infof("Requesting completion from %s with %d images", a.model, len(images))
	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	raw := completion.Choices[0].Message.Content
	result.Raw = raw
	result.RawChars = len(raw)
	result.FinishedMs = nowMs()

	blocks := ExtractCodeBlocks(raw)
	extracted := ExtractPromptBlocks(raw)
	result.BlocksCount = len(blocks)
	result.ExtractedKeys = sortedKeys(extracted)

	if err := writeGPTArtifacts(outDir, raw, blocks, extracted, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AnalyzeWithTimeout wraps Analyze with a deadline.
func (a *APIAnalyzer) AnalyzeWithTimeout(prompt string, images []string, outDir string, timeout time.Duration) (*GPTResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.Analyze(ctx, prompt, images, outDir)
}

func encodeImageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", path, err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), nil
}
