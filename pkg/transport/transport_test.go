// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package transport

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures the last request and answers with a fixed response.
type recorder struct {
	got  *Request
	resp *Response
}

func (r *recorder) Handle(_ context.Context, req *Request) *Response {
	r.got = req
	return r.resp
}

func jsonResponse(status int, body string) *Response {
	h := http.Header{}
	h.Set(HeaderContentType, "application/json")
	h.Set(HeaderSessionID, "sess-1")
	return &Response{StatusCode: status, Header: h, Body: body}
}

func TestHTTPHandler(t *testing.T) {
	rec := &recorder{resp: jsonResponse(200, `{"ok":true}`)}
	srv := httptest.NewServer(NewHTTPHandler(rec, 1024, nil))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"jsonrpc":"2.0"}`))
	req.Header.Set("content-type", "application/json")
	req.Header.Set("mcp-session-id", "abc")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "sess-1", resp.Header.Get(HeaderSessionID))
	assert.Equal(t, http.MethodPost, rec.got.Method)
	assert.Equal(t, "abc", rec.got.SessionID())
	assert.Equal(t, `{"jsonrpc":"2.0"}`, string(rec.got.Body))
}

func TestHTTPHandler_NoContent(t *testing.T) {
	rec := &recorder{resp: &Response{StatusCode: http.StatusNoContent, Header: http.Header{}}}
	w := httptest.NewRecorder()
	NewHTTPHandler(rec, 0, nil).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/mcp", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHTTPHandler_LimitsBody(t *testing.T) {
	rec := &recorder{resp: jsonResponse(200, "{}")}
	w := httptest.NewRecorder()
	big := strings.Repeat("x", 100)
	NewHTTPHandler(rec, 10, nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(big)))

	// One byte past the limit is read so the engine can reject it.
	assert.Len(t, rec.got.Body, 11)
}

func TestLambdaV1(t *testing.T) {
	rec := &recorder{resp: jsonResponse(200, `{"ok":true}`)}
	fn := LambdaV1(rec)

	out, err := fn(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: "POST",
		Headers:    map[string]string{"content-type": "application/json", "mcp-session-id": "abc"},
		MultiValueHeaders: map[string][]string{
			"accept": {"application/json", "text/event-stream"},
		},
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"a":1}`)),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 200, out.StatusCode)
	assert.Equal(t, `{"ok":true}`, out.Body)
	assert.Equal(t, "sess-1", out.Headers[HeaderSessionID])
	assert.Equal(t, "application/json", rec.got.Header.Get("Content-Type"))
	assert.Equal(t, []string{"application/json", "text/event-stream"}, rec.got.Header.Values("Accept"))
	assert.Equal(t, "abc", rec.got.SessionID())
	assert.Equal(t, `{"a":1}`, string(rec.got.Body))
}

func TestLambdaV2(t *testing.T) {
	rec := &recorder{resp: &Response{StatusCode: 204, Header: http.Header{}}}
	fn := LambdaV2(rec)

	ev := events.APIGatewayV2HTTPRequest{
		Headers: map[string]string{"mcp-session-id": "abc"},
	}
	ev.RequestContext.HTTP.Method = "DELETE"

	out, err := fn(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 204, out.StatusCode)
	assert.Empty(t, out.Body)
	assert.Equal(t, "DELETE", rec.got.Method)
	assert.Equal(t, "abc", rec.got.SessionID())
	assert.Empty(t, rec.got.Body)
}

func TestDecodeBody(t *testing.T) {
	assert.Equal(t, "plain", string(decodeBody("plain", false)))
	assert.Equal(t, "hi", string(decodeBody(base64.StdEncoding.EncodeToString([]byte("hi")), true)))
	assert.Equal(t, "hi", string(decodeBody(base64.RawStdEncoding.EncodeToString([]byte("hi")), true)))
	assert.Equal(t, "!!not base64", string(decodeBody("!!not base64", true)))
}
