// Package wire is the implementer-supplied Fetcher from spec.md §6: a
// concrete Solana JSON-RPC 2.0 client the orchestrator calls through the
// breaker. Grounded on olla's health/client.go request-building idiom
// (context-scoped timeout, explicit header injection, body always closed)
// and its translator package's gjson-based response reads.
package wire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	units "github.com/docker/go-units"
	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"rpcchain/internal/core/domain"
	"rpcchain/internal/core/ports"
	bufpool "rpcchain/pkg/pool"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type request struct {
	Params  any    `json:"params"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int    `json:"id"`
}

// JSONRPCFetcher implements ports.Fetcher by POSTing a JSON-RPC 2.0
// envelope to req.EndpointURL using req.Handle as the *http.Client
// (typically a pool.Handle's Client field).
type JSONRPCFetcher struct {
	maxResponseBytes int64
	bufPool          *bufpool.Pool[*bytes.Buffer]
}

// New builds a JSONRPCFetcher with no response size cap.
func New() *JSONRPCFetcher {
	return &JSONRPCFetcher{bufPool: newBufPool(0)}
}

// NewWithMaxResponseBytes builds a JSONRPCFetcher that rejects any upstream
// response body larger than maxResponseBytes, a human-readable size such as
// "10MB" parsed with github.com/docker/go-units. An empty string means no
// cap, matching New. The same limit bounds how large a request-encoding
// buffer the internal buffer pool will retain between calls, so one
// abnormally large request body doesn't leave that memory resident in the
// pool.
func NewWithMaxResponseBytes(maxResponseBytes string) (*JSONRPCFetcher, error) {
	if maxResponseBytes == "" {
		return New(), nil
	}
	limit, err := units.RAMInBytes(maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("wire: invalid max response bytes %q: %w", maxResponseBytes, err)
	}
	return &JSONRPCFetcher{maxResponseBytes: limit, bufPool: newBufPool(int(limit))}, nil
}

// newBufPool builds the *bytes.Buffer pool backing Fetch's request
// encoding. maxCap, when positive, caps how large a buffer Put will
// retain; 0 falls back to the pool's own default.
func newBufPool(maxCap int) *bufpool.Pool[*bytes.Buffer] {
	p := bufpool.NewLitePool(func() *bytes.Buffer { return new(bytes.Buffer) })
	if maxCap > 0 {
		p = p.WithMaxPooledCap(maxCap)
	}
	return p
}

func (f *JSONRPCFetcher) Fetch(ctx context.Context, req ports.FetchRequest) (ports.FetchResult, error) {
	client, ok := req.Handle.(*http.Client)
	if !ok {
		return ports.FetchResult{}, fmt.Errorf("wire: handle is not an *http.Client")
	}

	buf := f.bufPool.Get()
	defer f.bufPool.Put(buf)

	if err := jsonAPI.NewEncoder(buf).Encode(request{JSONRPC: "2.0", ID: 1, Method: req.Method, Params: req.Params}); err != nil {
		return ports.FetchResult{}, err
	}
	body := buf.Bytes()

	callCtx := ctx
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, req.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return ports.FetchResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return ports.FetchResult{}, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	reader := io.Reader(resp.Body)
	if f.maxResponseBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxResponseBytes+1)
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		return ports.FetchResult{}, err
	}
	if f.maxResponseBytes > 0 && int64(len(payload)) > f.maxResponseBytes {
		return ports.FetchResult{}, fmt.Errorf("wire: response exceeded max response bytes (%d)", f.maxResponseBytes)
	}

	if resp.StatusCode >= 400 {
		return ports.FetchResult{StatusCode: resp.StatusCode}, &domain.HTTPStatusError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("wire: upstream returned status %d", resp.StatusCode),
		}
	}

	parsed := gjson.ParseBytes(payload)
	if errField := parsed.Get("error"); errField.Exists() {
		return ports.FetchResult{StatusCode: resp.StatusCode}, &domain.HTTPStatusError{
			Status: 400,
			Err:    fmt.Errorf("wire: rpc error: %s", errField.Raw),
		}
	}

	return ports.FetchResult{
		Value:      parsed.Get("result").Value(),
		StatusCode: resp.StatusCode,
	}, nil
}
