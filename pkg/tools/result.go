// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package tools

import (
	"encoding/json"
	"fmt"
)

// Content types.
const (
	ContentText  = "text"
	ContentImage = "image"
)

// Content is one item of a tool result.
type Content struct {
	Type     string
	Text     string
	Data     string // base64, for image content
	MimeType string
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Type == ContentText || c.Type == "" {
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{ContentText, c.Text})
	}
	return json.Marshal(struct {
		Type     string `json:"type"`
		Text     string `json:"text,omitempty"`
		Data     string `json:"data,omitempty"`
		MimeType string `json:"mimeType,omitempty"`
	}{c.Type, c.Text, c.Data, c.MimeType})
}

func (c *Content) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Data     string `json:"data"`
		MimeType string `json:"mimeType"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = Content{Type: raw.Type, Text: raw.Text, Data: raw.Data, MimeType: raw.MimeType}
	return nil
}

// TextContent returns a text content item.
func TextContent(text string) Content {
	return Content{Type: ContentText, Text: text}
}

// ImageContent returns an image content item holding base64 data.
func ImageContent(data, mimeType string) Content {
	return Content{Type: ContentImage, Data: data, MimeType: mimeType}
}

// Result is the tools/call result envelope.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// TextResult wraps text as a successful result.
func TextResult(text string) *Result {
	return &Result{Content: []Content{TextContent(text)}}
}

// ErrorResult reports a tool-level failure to the caller as content rather
// than as a JSON-RPC error.
func ErrorResult(text string) *Result {
	return &Result{Content: []Content{TextContent(text)}, IsError: true}
}

// NewResult renders a handler's return value as a result envelope.
//
// A Result, []Content or Content passes through. Anything else becomes a
// single text item: strings verbatim, fmt.Stringer via String, other values
// as JSON. A nil value yields an empty content list.
func NewResult(v any) *Result {
	switch r := v.(type) {
	case nil:
		return &Result{Content: []Content{}}
	case *Result:
		if r == nil {
			return &Result{Content: []Content{}}
		}
		if r.Content == nil {
			r.Content = []Content{}
		}
		return r
	case Result:
		return NewResult(&r)
	case []Content:
		if r == nil {
			r = []Content{}
		}
		return &Result{Content: r}
	case Content:
		return &Result{Content: []Content{r}}
	case *Content:
		if r == nil {
			return &Result{Content: []Content{}}
		}
		return &Result{Content: []Content{*r}}
	}
	return TextResult(Stringify(v))
}

// Stringify returns the text form of a non-content handler value.
func Stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	case error:
		return s.Error()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
