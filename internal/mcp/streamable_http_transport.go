package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/thedeathtitan/mcpbridge/internal/logging"
)

const (
	// MaxSSEEventSize is the maximum size of a single SSE line (1MB).
	MaxSSEEventSize = 1024 * 1024

	// MaxResponseSize bounds a plain JSON response body (10MB).
	MaxResponseSize = 10 * 1024 * 1024

	// maxErrorBodySize bounds how much of a non-2xx body is kept for diagnosis.
	maxErrorBodySize = 4096

	// DefaultTimeout bounds one request/response exchange.
	DefaultTimeout = 30 * time.Second

	// DefaultConnectTimeout is the timeout for dialing and TLS handshakes.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultEndpointPath is where MCP servers usually mount the JSON-RPC endpoint.
	DefaultEndpointPath = "/mcp"

	headerSessionID       = "Mcp-Session-Id"
	headerProtocolVersion = "MCP-Protocol-Version"
)

// StreamableHTTPConfig holds configuration for the HTTP transport.
type StreamableHTTPConfig struct {
	// URL is the server base URL (e.g. "https://mcp.example.run.app") or the
	// full endpoint URL.
	URL string

	// EndpointPath is appended to URL unless URL already ends with it.
	EndpointPath string

	// BearerToken is the bearer token for authentication (optional).
	BearerToken string

	// BearerTokenProvider resolves a bearer token for each request (optional).
	// When set, it takes precedence over BearerToken.
	BearerTokenProvider func(context.Context) (string, error)

	// HTTPHeaders are static headers to include in all requests.
	HTTPHeaders map[string]string

	// Timeout bounds each exchange. DefaultTimeout is used when zero.
	Timeout time.Duration

	// Client is the HTTP client to use. If nil, a client derived from
	// http.DefaultTransport is used.
	Client *http.Client

	Logger *logging.Logger
}

// StreamableHTTPTransport implements Transport over HTTP POST. Replies may be
// a single JSON object or an SSE stream; the first decodable data line of a
// stream is taken as the reply.
type StreamableHTTPTransport struct {
	config   StreamableHTTPConfig
	endpoint string
	client   *http.Client
	timeout  time.Duration
	logger   *logging.Logger

	mu              sync.Mutex
	sessionID       string
	protocolVersion string
}

// NewStreamableHTTPTransport creates a new HTTP transport for MCP.
func NewStreamableHTTPTransport(config StreamableHTTPConfig) *StreamableHTTPTransport {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &StreamableHTTPTransport{
		config:   config,
		endpoint: ResolveEndpoint(config.URL, config.EndpointPath),
		client:   cloneHTTPClient(config.Client),
		timeout:  timeout,
		logger:   logger,
	}
}

// Endpoint returns the URL requests are posted to.
func (t *StreamableHTTPTransport) Endpoint() string {
	return t.endpoint
}

// Send posts req and decodes the reply. It never returns nil.
func (t *StreamableHTTPTransport) Send(ctx context.Context, req *Request) *Response {
	body, err := json.Marshal(req)
	if err != nil {
		return failed(KindProtocol, "encode request: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	t.logger.Debug("mcp send", "method", req.Method, "id", req.ID.String(), "body", string(body))

	httpResp, err := t.post(ctx, body)
	if err != nil {
		return t.sendFailure(ctx, req, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	t.captureSessionID(httpResp)

	resp := t.decode(httpResp)
	if resp.Failure != nil {
		t.logger.Warn("mcp exchange failed",
			"method", req.Method,
			"id", req.ID.String(),
			"kind", resp.Failure.Kind.String(),
			"status", httpResp.StatusCode,
			"err", resp.Failure.Message,
		)
	}
	return resp
}

// Notify posts a JSON-RPC notification and discards any reply body.
func (t *StreamableHTTPTransport) Notify(ctx context.Context, method string, params any) error {
	req, err := NewRequest(ID{}, method, params)
	if err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	t.logger.Debug("mcp notify", "method", method)

	httpResp, err := t.post(ctx, body)
	if err != nil {
		return t.sendFailure(ctx, req, err).Failure
	}
	defer func() { _ = httpResp.Body.Close() }()
	t.captureSessionID(httpResp)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodySize))
		return &Error{
			Kind:       KindTransport,
			StatusCode: httpResp.StatusCode,
			Message:    "notification rejected",
			Body:       string(raw),
		}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxErrorBodySize))
	return nil
}

// Close releases idle connections held by the HTTP client.
func (t *StreamableHTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// SessionID returns the Mcp-Session-Id issued by the server, if any.
func (t *StreamableHTTPTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// SetProtocolVersion records the version negotiated during initialize so it
// is sent on every later request.
func (t *StreamableHTTPTransport) SetProtocolVersion(version string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.protocolVersion = version
}

func (t *StreamableHTTPTransport) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if err := t.setHeaders(ctx, req); err != nil {
		return nil, fmt.Errorf("set headers: %w", err)
	}
	return t.client.Do(req)
}

func (t *StreamableHTTPTransport) sendFailure(ctx context.Context, req *Request, err error) *Response {
	var msg string
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		msg = fmt.Sprintf("request timed out after %s", t.timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		msg = "request canceled"
	default:
		msg = fmt.Sprintf("send request: %v", err)
	}
	t.logger.Warn("mcp transport error", "method", req.Method, "id", req.ID.String(), "err", err)
	return &Response{Failure: &Error{Kind: KindTransport, Message: msg, Err: err}}
}

// decode turns an HTTP reply into a Response according to its content type.
func (t *StreamableHTTPTransport) decode(httpResp *http.Response) *Response {
	mediaType := contentType(httpResp.Header)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodySize))
		// Some servers put a JSON-RPC error in the body of a 4xx/5xx.
		if resp := decodeBody(mediaType, raw); resp.Failure == nil && resp.Error != nil {
			return resp
		}
		return &Response{Failure: &Error{
			Kind:       KindTransport,
			StatusCode: httpResp.StatusCode,
			Message:    http.StatusText(httpResp.StatusCode),
			Body:       string(raw),
		}}
	}

	if mediaType == "text/event-stream" {
		return decodeEventStream(httpResp.Body)
	}

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxResponseSize))
	if err != nil {
		return &Response{Failure: &Error{Kind: KindTransport, Message: fmt.Sprintf("read response: %v", err), Err: err}}
	}
	t.logger.Debug("mcp recv", "status", httpResp.StatusCode, "body", string(raw))
	return decodeBody(mediaType, raw)
}

// decodeBody decodes a fully-read body.
func decodeBody(mediaType string, raw []byte) *Response {
	if mediaType == "text/event-stream" {
		return decodeEventStream(bytes.NewReader(raw))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return failed(KindProtocol, "empty response body")
	}
	resp, err := decodeResponse(raw)
	if err != nil {
		if mediaType != "application/json" && mediaType != "" {
			return &Response{Failure: &Error{
				Kind:    KindTransport,
				Message: fmt.Sprintf("unexpected content type %q", mediaType),
				Body:    truncate(string(raw), maxErrorBodySize),
				Err:     err,
			}}
		}
		return &Response{Failure: &Error{
			Kind:    KindProtocol,
			Message: fmt.Sprintf("malformed JSON response: %v", err),
			Body:    truncate(string(raw), maxErrorBodySize),
			Err:     err,
		}}
	}
	return resp
}

// decodeEventStream returns the first data line that decodes as a JSON-RPC
// reply. Server-initiated messages interleaved before it are skipped. A
// reply with neither result nor error is a protocol failure unless a valid
// reply follows it.
func decodeEventStream(body io.Reader) *Response {
	scanner := newSSEScanner(body, MaxSSEEventSize)
	var lastErr error
	var invalid []byte
	for {
		data, err := scanner.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &Response{Failure: &Error{
				Kind:    KindTransport,
				Message: fmt.Sprintf("read SSE response: %v", err),
				Err:     err,
			}}
		}
		resp, err := decodeResponse(data)
		if err != nil {
			if errors.Is(err, errNoOutcome) && invalid == nil {
				invalid = append([]byte(nil), data...)
			}
			lastErr = err
			continue
		}
		return resp
	}
	if invalid != nil {
		return &Response{Failure: &Error{
			Kind:    KindProtocol,
			Message: fmt.Sprintf("malformed JSON response: %v", errNoOutcome),
			Body:    truncate(string(invalid), maxErrorBodySize),
			Err:     errNoOutcome,
		}}
	}
	return &Response{Failure: &Error{
		Kind:    KindTransport,
		Message: "could not parse SSE response",
		Err:     lastErr,
	}}
}

func (t *StreamableHTTPTransport) captureSessionID(resp *http.Response) {
	if sid := resp.Header.Get(headerSessionID); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}
}

// setHeaders sets headers common to all requests.
func (t *StreamableHTTPTransport) setHeaders(ctx context.Context, req *http.Request) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	t.mu.Lock()
	sessionID, version := t.sessionID, t.protocolVersion
	t.mu.Unlock()
	if sessionID != "" {
		req.Header.Set(headerSessionID, sessionID)
	}
	if version != "" {
		req.Header.Set(headerProtocolVersion, version)
	}

	// Bearer token auth
	if t.config.BearerTokenProvider != nil {
		token, err := t.config.BearerTokenProvider(ctx)
		if err != nil {
			return fmt.Errorf("resolve bearer token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	} else if t.config.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.config.BearerToken)
	}

	for k, v := range t.config.HTTPHeaders {
		req.Header.Set(k, v)
	}
	return nil
}

func contentType(h http.Header) string {
	ct := h.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	}
	return mediaType
}

// ResolveEndpoint joins base and path unless base already ends with path.
func ResolveEndpoint(base, path string) string {
	if path == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	clean := "/" + strings.Trim(path, "/")
	if strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), clean) {
		return base
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + clean
	return u.String()
}

// sseScanner reads SSE data lines from a reader.
type sseScanner struct {
	reader  *bufio.Reader
	maxSize int
}

func newSSEScanner(r io.Reader, maxSize int) *sseScanner {
	return &sseScanner{
		reader:  bufio.NewReader(r),
		maxSize: maxSize,
	}
}

// Next returns the payload of the next non-empty "data:" line. Comment lines,
// other fields and blank dispatch lines are skipped. Returns io.EOF at the end.
func (s *sseScanner) Next() ([]byte, error) {
	for {
		line, err := s.reader.ReadBytes('\n')
		if len(line) > s.maxSize {
			return nil, fmt.Errorf("SSE line exceeds maximum size of %d bytes", s.maxSize)
		}
		if len(line) == 0 && err != nil {
			return nil, err
		}

		// Trim CRLF or LF
		line = bytes.TrimSuffix(line, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))

		if value, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			// Remove leading space from value if present
			if len(value) > 0 && value[0] == ' ' {
				value = value[1:]
			}
			if len(value) > 0 {
				return value, nil
			}
		}

		if err != nil {
			return nil, err
		}
	}
}

// ValidateBearerTokenEnvVar reads the bearer token from the named variable.
// Returns an error if the name is set but the variable is missing or invalid.
func ValidateBearerTokenEnvVar(envVarName string) (string, error) {
	if envVarName == "" {
		return "", nil
	}
	if !isValidEnvVarName(envVarName) {
		return "", fmt.Errorf("invalid bearer token env var name %q", envVarName)
	}
	val, ok := os.LookupEnv(envVarName)
	if !ok || strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("bearer token env var %s is not set", envVarName)
	}
	if strings.ContainsAny(val, "\r\n") {
		return "", fmt.Errorf("bearer token env var %s must not contain newlines", envVarName)
	}
	return val, nil
}

func cloneHTTPClient(base *http.Client) *http.Client {
	c := &http.Client{}
	if base != nil {
		*c = *base
	}
	// Deadlines come from the per-call context.
	c.Timeout = 0

	if c.Transport == nil {
		c.Transport = defaultHTTPTransport()
		return c
	}
	if t, ok := c.Transport.(*http.Transport); ok {
		tt := t.Clone()
		if tt.TLSHandshakeTimeout == 0 {
			tt.TLSHandshakeTimeout = DefaultConnectTimeout
		}
		if tt.DialContext == nil {
			tt.DialContext = (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext
		}
		c.Transport = tt
	}
	return c
}

func defaultHTTPTransport() *http.Transport {
	if dt, ok := http.DefaultTransport.(*http.Transport); ok {
		t := dt.Clone()
		if t.TLSHandshakeTimeout == 0 {
			t.TLSHandshakeTimeout = DefaultConnectTimeout
		}
		return t
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   DefaultConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func isValidEnvVarName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		isLetter := (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
		isDigit := b >= '0' && b <= '9'
		if i == 0 {
			if !isLetter && b != '_' {
				return false
			}
			continue
		}
		if !isLetter && !isDigit && b != '_' {
			return false
		}
	}
	return true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
