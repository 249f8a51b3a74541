package wire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpcchain/internal/core/domain"
	"rpcchain/internal/core/ports"
)

func TestJSONRPCFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"balance":42}}`))
	}))
	defer srv.Close()

	f := New()
	res, err := f.Fetch(context.Background(), ports.FetchRequest{
		EndpointURL: srv.URL,
		Method:      "getBalance",
		Params:      []any{"abc"},
		Handle:      srv.Client(),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotNil(t, res.Value)
}

func TestJSONRPCFetcher_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`))
	}))
	defer srv.Close()

	f := New()
	_, err := f.Fetch(context.Background(), ports.FetchRequest{
		EndpointURL: srv.URL,
		Method:      "getBalance",
		Handle:      srv.Client(),
	})
	require.Error(t, err)
	var statusErr *domain.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
}

func TestJSONRPCFetcher_HTTPServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := New()
	_, err := f.Fetch(context.Background(), ports.FetchRequest{
		EndpointURL: srv.URL,
		Method:      "getBalance",
		Handle:      srv.Client(),
	})
	require.Error(t, err)
	var statusErr *domain.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
	assert.Equal(t, domain.ErrorKindHTTPServerError, domain.ClassifyError(err))
}

func TestJSONRPCFetcher_BadHandleType(t *testing.T) {
	f := New()
	_, err := f.Fetch(context.Background(), ports.FetchRequest{EndpointURL: "http://x", Handle: "not-a-client"})
	require.Error(t, err)
}
