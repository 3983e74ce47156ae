package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiChatModel 把 Gemini 适配为 eino 的 BaseChatModel
type GeminiChatModel struct {
	client *genai.Client
	model  string
}

var _ model.BaseChatModel = (*GeminiChatModel)(nil)

// NewGeminiChatModel 创建 Gemini 客户端
func NewGeminiChatModel(ctx context.Context, apiKey, modelName string, opts ...option.ClientOption) (*GeminiChatModel, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiChatModel{client: client, model: modelName}, nil
}

// Close 释放底层连接
func (g *GeminiChatModel) Close() error {
	return g.client.Close()
}

// Generate system 消息作为 SystemInstruction，最后一条消息作为本轮输入，其余作为历史
func (g *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	gm := g.client.GenerativeModel(g.model)

	var system []string
	var contents []*genai.Content
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.Assistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(contents) == 0 {
		return nil, errors.New("gemini: no input message")
	}
	if len(system) > 0 {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n"))}}
	}

	cs := gm.StartChat()
	cs.History = contents[:len(contents)-1]
	resp, err := cs.SendMessage(ctx, contents[len(contents)-1].Parts...)
	if err != nil {
		return nil, err
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

// Stream Gemini 不走流式接口，一次性返回完整结果
func (g *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := g.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini: no candidates returned, possible safety filter")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", errors.New("gemini: empty candidate content")
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}
