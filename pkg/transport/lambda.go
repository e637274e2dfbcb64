// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package transport

import (
	"context"
	"encoding/base64"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaV1Func handles API Gateway REST (payload v1) events.
type LambdaV1Func func(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// LambdaV2Func handles HTTP API and function URL (payload v2) events.
type LambdaV2Func func(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// LambdaV1 adapts h to API Gateway REST events.
func LambdaV1(h Handler) LambdaV1Func {
	return func(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		body := decodeBody(ev.Body, ev.IsBase64Encoded)

		req := NewRequest(ev.HTTPMethod, ev.Headers, body)
		for k, vs := range ev.MultiValueHeaders {
			req.Header.Del(k)
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp := h.Handle(ctx, req)
		return events.APIGatewayProxyResponse{
			StatusCode: resp.StatusCode,
			Headers:    flatHeaders(resp.Header),
			Body:       resp.Body,
		}, nil
	}
}

// LambdaV2 adapts h to API Gateway HTTP API and Lambda function URL events.
func LambdaV2(h Handler) LambdaV2Func {
	return func(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		body := decodeBody(ev.Body, ev.IsBase64Encoded)

		req := NewRequest(ev.RequestContext.HTTP.Method, ev.Headers, body)
		resp := h.Handle(ctx, req)
		return events.APIGatewayV2HTTPResponse{
			StatusCode: resp.StatusCode,
			Headers:    flatHeaders(resp.Header),
			Body:       resp.Body,
		}, nil
	}
}

// decodeBody returns the event body bytes. A body flagged as base64 that
// fails to decode is passed through as-is and rejected by the engine as
// unparseable JSON.
func decodeBody(body string, isBase64 bool) []byte {
	if !isBase64 {
		return []byte(body)
	}
	if byt, err := base64.StdEncoding.DecodeString(body); err == nil {
		return byt
	}
	// Some proxies strip padding.
	if byt, err := base64.RawStdEncoding.DecodeString(body); err == nil {
		return byt
	}
	return []byte(body)
}
