package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// リクエストボディのフィールド名。
const (
	fieldModel               = "model"
	fieldMessages            = "messages"
	fieldMaxCompletionTokens = "max_completion_tokens"
)

// Message はチャットの1メッセージ。
type Message struct {
	// Role は発言者（"system"、"user"、"assistant" など）。
	Role string `json:"role" validate:"required"`
	// Content はメッセージ本文。
	Content string `json:"content" validate:"required"`
}

// Defaults はリクエストで省略されたフィールドに補う値。
type Defaults struct {
	// Model はmodelが省略または空の場合に使うモデル。
	Model string
	// MaxCompletionTokens はmax_completion_tokensが省略された場合の上限。
	MaxCompletionTokens int
}

// ChatRequest は検証済みのチャット補完リクエスト。
type ChatRequest struct {
	// Model はリクエストで指定されたモデル。省略時は空文字列。
	Model string
	// Messages は会話のメッセージ。1件以上。
	Messages []Message
	// MaxCompletionTokens はリクエストで指定された上限。省略時は0。
	MaxCompletionTokens int

	// fields はクライアントが送信したトップレベルのフィールド。上流にそのまま転送する。
	fields map[string]json.RawMessage
}

// parseChatRequest はリクエストボディを解析して検証する。
func parseChatRequest(body []byte, validate *validator.Validate) (*ChatRequest, *ValidationError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, &ValidationError{Message: "Request body must be a JSON object"}
	}

	req := &ChatRequest{fields: fields}

	rawMessages, ok := fields[fieldMessages]
	if !ok || !isJSONArray(rawMessages) {
		return nil, &ValidationError{Message: "messages is required and must be an array"}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(rawMessages, &elems); err != nil {
		return nil, &ValidationError{Message: "messages is required and must be an array"}
	}
	if len(elems) == 0 {
		return nil, &ValidationError{Message: "messages must contain at least one message"}
	}

	req.Messages = make([]Message, 0, len(elems))
	for i, elem := range elems {
		var msg Message
		// 文字列以外のrole/contentはUnmarshalで弾かれる
		if err := json.Unmarshal(elem, &msg); err != nil || !isJSONObject(elem) {
			return nil, invalidMessageError(i)
		}
		if err := validate.Struct(msg); err != nil {
			return nil, invalidMessageError(i)
		}
		req.Messages = append(req.Messages, msg)
	}

	if raw, ok := fields[fieldModel]; ok && !isJSONNull(raw) {
		if err := json.Unmarshal(raw, &req.Model); err != nil {
			return nil, &ValidationError{Message: "model must be a string"}
		}
	}

	if raw, ok := fields[fieldMaxCompletionTokens]; ok && !isJSONNull(raw) {
		n, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
		if err != nil || n <= 0 {
			return nil, &ValidationError{Message: "max_completion_tokens must be a positive integer"}
		}
		req.MaxCompletionTokens = n
	}

	return req, nil
}

// Payload は上流APIに送るリクエストボディを組み立てる。
// クライアントのフィールドはそのまま残し、modelとmax_completion_tokensだけを補う。
func (r *ChatRequest) Payload(defaults Defaults) map[string]json.RawMessage {
	payload := make(map[string]json.RawMessage, len(r.fields)+2)
	for k, v := range r.fields {
		payload[k] = v
	}
	if r.Model == "" {
		payload[fieldModel] = mustMarshal(defaults.Model)
	}
	if r.MaxCompletionTokens == 0 {
		payload[fieldMaxCompletionTokens] = mustMarshal(defaults.MaxCompletionTokens)
	}
	return payload
}

func invalidMessageError(index int) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf("messages[%d] must have a non-empty role and content", index)}
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// mustMarshal は文字列や数値など失敗しない値をJSONに変換する。
func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("JSONへの変換に失敗: %v", err))
	}
	return b
}
