package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flakeledger/core"
	"flakeledger/crypto"
	"flakeledger/storage"
)

const (
	testJWTSecret = "rpc-test-secret"
	testIssuer    = "rpc-tests"
	testAudience  = "unit-tests"
)

func testAddress(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

var (
	ownerAddr  = testAddress(0x01)
	oracleAddr = testAddress(0x02)
	aliceAddr  = testAddress(0xA1)
	bobAddr    = testAddress(0xB0)
	carolAddr  = testAddress(0xC0)
)

type testEnv struct {
	node   *core.Node
	server *Server
	http   *httptest.Server
}

func newTestEnv(t *testing.T, limit RateLimit) *testEnv {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB(), nil)
	require.NoError(t, err)
	require.NoError(t, node.Bootstrap(ownerAddr, oracleAddr, map[[20]byte]*big.Int{
		aliceAddr: big.NewInt(1_000_000),
		bobAddr:   big.NewInt(1_000_000),
	}))
	srv := NewServer(node, ServerConfig{
		Auth:      AuthConfig{HMACSecret: testJWTSecret, Issuer: testIssuer, Audience: testAudience},
		RateLimit: limit,
	}, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{node: node, server: srv, http: ts}
}

func tokenFor(t *testing.T, addr [20]byte) string {
	t.Helper()
	token, err := IssueToken(testJWTSecret, testIssuer, testAudience, crypto.FormatAddress(addr), time.Hour)
	require.NoError(t, err)
	return token
}

// call posts a JSON-RPC request and decodes the envelope. A zero caller sends
// no Authorization header.
func (e *testEnv) call(t *testing.T, caller [20]byte, method string, params interface{}) (int, RPCResponse) {
	t.Helper()
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, e.http.URL+"/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if caller != ([20]byte{}) {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, caller))
	}
	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// result re-decodes the generic result into out.
func result(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected rpc error: %+v", resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}
