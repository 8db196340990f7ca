package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/code-boost/pkg/rate"
)

func TestSignatureStatus(t *testing.T) {
	zero, one := 0, 1

	testCases := []struct {
		s         SignatureStatus
		confirmed bool
		finalized bool
	}{
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: "",
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: "random",
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusProcessed,
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &one,
				ConfirmationStatus: "",
			},
			confirmed: true,
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusConfirmed,
			},
			confirmed: true,
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusFinalized,
			},
			confirmed: true,
			finalized: true,
		},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.confirmed, tc.s.Confirmed())
		assert.Equal(t, tc.finalized, tc.s.Finalized())

		assert.True(t, tc.s.Reached(CommitmentProcessed))
		assert.Equal(t, tc.confirmed, tc.s.Reached(CommitmentConfirmed))
		assert.Equal(t, tc.finalized, tc.s.Reached(CommitmentFinalized))
	}
}

func TestCommitmentFromString(t *testing.T) {
	for _, c := range []Commitment{CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized} {
		actual, err := CommitmentFromString(c.Commitment)
		require.NoError(t, err)
		assert.Equal(t, c, actual)
	}

	_, err := CommitmentFromString("max")
	assert.Error(t, err)
}

func TestMemcmpFilter(t *testing.T) {
	data := []byte{2, 1, 2, 3, 4}

	assert.True(t, MemcmpFilter{Offset: 0, Bytes: []byte{2}}.Matches(data))
	assert.True(t, MemcmpFilter{Offset: 1, Bytes: []byte{1, 2, 3, 4}}.Matches(data))
	assert.True(t, MemcmpFilter{Offset: 5}.Matches(data))
	assert.False(t, MemcmpFilter{Offset: 1, Bytes: []byte{1, 2, 3, 4, 5}}.Matches(data))
	assert.False(t, MemcmpFilter{Offset: 0, Bytes: []byte{1}}.Matches(data))
}

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     int               `json:"id"`
}

type rpcHandler func(req rpcRequest) (result interface{}, rpcErr *jsonrpc.RPCError)

type testServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []rpcRequest
}

func newTestServer(t *testing.T, handler rpcHandler) *testServer {
	s := &testServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		result, rpcErr := handler(req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testServer) calls() []rpcRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]rpcRequest{}, s.requests...)
}

func TestClient_GetAccountInfo(t *testing.T) {
	account, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	owner, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	data := []byte{2, 0, 1, 2, 3}

	server := newTestServer(t, func(req rpcRequest) (interface{}, *jsonrpc.RPCError) {
		var address string
		require.NoError(t, json.Unmarshal(req.Params[0], &address))
		if address != base58.Encode(account) {
			return map[string]interface{}{"value": nil}, nil
		}

		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value": map[string]interface{}{
				"lamports":   1000,
				"owner":      base58.Encode(owner),
				"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
				"executable": false,
			},
		}, nil
	})

	c := New(server.URL)

	info, err := c.GetAccountInfo(context.Background(), account, CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, data, info.Data)
	assert.EqualValues(t, owner, info.Owner)
	assert.EqualValues(t, 1000, info.Lamports)

	other, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, err = c.GetAccountInfo(context.Background(), other, CommitmentConfirmed)
	assert.Equal(t, ErrNoAccountInfo, err)

	calls := server.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "getAccountInfo", calls[0].Method)

	var config map[string]string
	require.NoError(t, json.Unmarshal(calls[0].Params[1], &config))
	assert.Equal(t, "confirmed", config["commitment"])
	assert.Equal(t, "base64", config["encoding"])
}

func TestClient_GetProgramAccounts(t *testing.T) {
	program, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	keys := generateKeys(t, 2)

	server := newTestServer(t, func(req rpcRequest) (interface{}, *jsonrpc.RPCError) {
		var result []interface{}
		for i, k := range keys {
			result = append(result, map[string]interface{}{
				"pubkey": base58.Encode(public(k)),
				"account": map[string]interface{}{
					"lamports": 1,
					"owner":    base58.Encode(program),
					"data":     []string{base64.StdEncoding.EncodeToString([]byte{2, byte(i)}), "base64"},
				},
			})
		}
		return result, nil
	})

	c := New(server.URL)

	accounts, err := c.GetProgramAccounts(
		context.Background(),
		program,
		CommitmentConfirmed,
		MemcmpFilter{Offset: 0, Bytes: []byte{2}},
		MemcmpFilter{Offset: 1, Bytes: public(keys[0])},
	)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	for i, a := range accounts {
		assert.EqualValues(t, public(keys[i]), a.PublicKey)
		assert.Equal(t, []byte{2, byte(i)}, a.Account.Data)
	}

	calls := server.calls()
	require.Len(t, calls, 1)

	var config struct {
		Filters []struct {
			Memcmp struct {
				Offset uint   `json:"offset"`
				Bytes  string `json:"bytes"`
			} `json:"memcmp"`
		} `json:"filters"`
	}
	require.NoError(t, json.Unmarshal(calls[0].Params[1], &config))
	require.Len(t, config.Filters, 2)
	assert.Equal(t, base58.Encode([]byte{2}), config.Filters[0].Memcmp.Bytes)
	assert.EqualValues(t, 1, config.Filters[1].Memcmp.Offset)
	assert.Equal(t, base58.Encode(public(keys[0])), config.Filters[1].Memcmp.Bytes)
}

func TestClient_GetLatestBlockhash(t *testing.T) {
	var expected Blockhash
	expected[0] = 1
	expected[31] = 2

	server := newTestServer(t, func(req rpcRequest) (interface{}, *jsonrpc.RPCError) {
		return map[string]interface{}{
			"value": map[string]interface{}{
				"blockhash":            base58.Encode(expected[:]),
				"lastValidBlockHeight": 100,
			},
		}, nil
	})

	cached := New(server.URL, WithBlockhashCache(time.Hour))
	for i := 0; i < 3; i++ {
		actual, err := cached.GetLatestBlockhash(context.Background())
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	}
	calls := server.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "getLatestBlockhash", calls[0].Method)
	require.Len(t, calls[0].Params, 1)

	var commitment Commitment
	require.NoError(t, json.Unmarshal(calls[0].Params[0], &commitment))
	assert.Equal(t, CommitmentConfirmed, commitment)

	uncached := New(server.URL, WithBlockhashCache(0))
	for i := 0; i < 3; i++ {
		_, err := uncached.GetLatestBlockhash(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, server.calls(), 4)
}

func TestClient_SubmitTransaction(t *testing.T) {
	keys := generateKeys(t, 2)
	tx, err := Compile(public(keys[0]), Blockhash{3}, NewInstruction(public(keys[1]), []byte{1}))
	require.NoError(t, err)
	sign(t, &tx, keys[0])

	server := newTestServer(t, func(req rpcRequest) (interface{}, *jsonrpc.RPCError) {
		var encoded string
		require.NoError(t, json.Unmarshal(req.Params[0], &encoded))

		raw, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)

		var submitted Transaction
		require.NoError(t, submitted.Unmarshal(raw))
		return base58.Encode(submitted.Signatures[0][:]), nil
	})

	sig, err := New(server.URL).SubmitTransaction(context.Background(), tx.Marshal(), CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, tx.Signature(), sig)

	calls := server.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendTransaction", calls[0].Method)

	var config map[string]interface{}
	require.NoError(t, json.Unmarshal(calls[0].Params[1], &config))
	assert.Equal(t, "base64", config["encoding"])
	assert.Equal(t, false, config["skipPreflight"])
}

func TestClient_SubmitTransaction_RPCError(t *testing.T) {
	server := newTestServer(t, func(req rpcRequest) (interface{}, *jsonrpc.RPCError) {
		return nil, &jsonrpc.RPCError{
			Code:    -32002,
			Message: "Transaction simulation failed",
			Data: map[string]interface{}{
				"err": map[string]interface{}{
					"InstructionError": []interface{}{1, map[string]interface{}{"Custom": 6000}},
				},
			},
		}
	})

	_, err := New(server.URL).SubmitTransaction(context.Background(), []byte{1, 2, 3}, CommitmentConfirmed)
	require.Error(t, err)

	var rpcErr *jsonrpc.RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32002, rpcErr.Code)

	txErr, err := ParseRPCError(rpcErr)
	require.NoError(t, err)
	code, ok := txErr.CustomErrorCode()
	assert.True(t, ok)
	assert.Equal(t, 6000, code)
}

func TestClient_GetSignatureStatus(t *testing.T) {
	var known, failed, unknown Signature
	known[0] = 1
	failed[0] = 2
	unknown[0] = 3

	server := newTestServer(t, func(req rpcRequest) (interface{}, *jsonrpc.RPCError) {
		var sigs []string
		require.NoError(t, json.Unmarshal(req.Params[0], &sigs))
		require.Len(t, sigs, 1)

		var value interface{}
		switch sigs[0] {
		case known.String():
			value = map[string]interface{}{
				"slot":               5,
				"confirmations":      nil,
				"confirmationStatus": "finalized",
				"err":                nil,
			}
		case failed.String():
			value = map[string]interface{}{
				"slot":               6,
				"confirmations":      1,
				"confirmationStatus": "confirmed",
				"err": map[string]interface{}{
					"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 1}},
				},
			}
		}

		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value":   []interface{}{value},
		}, nil
	})

	c := New(server.URL)

	status, err := c.GetSignatureStatus(context.Background(), known)
	require.NoError(t, err)
	assert.EqualValues(t, 5, status.Slot)
	assert.Nil(t, status.ErrorResult)
	assert.True(t, status.Finalized())

	status, err = c.GetSignatureStatus(context.Background(), failed)
	require.NoError(t, err)
	assert.True(t, status.Confirmed())
	assert.False(t, status.Finalized())
	require.NotNil(t, status.ErrorResult)
	code, ok := status.ErrorResult.CustomErrorCode()
	assert.True(t, ok)
	assert.Equal(t, 1, code)

	_, err = c.GetSignatureStatus(context.Background(), unknown)
	assert.Equal(t, ErrSignatureNotFound, err)
}

func TestClient_Cancelled(t *testing.T) {
	server := newTestServer(t, func(req rpcRequest) (interface{}, *jsonrpc.RPCError) {
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(server.URL).GetLatestBlockhash(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, server.calls())
}

func TestClient_RateLimited(t *testing.T) {
	server := newTestServer(t, func(req rpcRequest) (interface{}, *jsonrpc.RPCError) {
		return map[string]interface{}{"value": nil}, nil
	})

	c := New(server.URL, WithRateLimiter(rate.NewLocalRateLimiter(xrate.Limit(1))))

	account, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = c.GetAccountInfo(context.Background(), account, CommitmentConfirmed)
	assert.Equal(t, ErrNoAccountInfo, err)

	// The second call has to wait for a token, which the deadline doesn't allow.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.GetAccountInfo(ctx, account, CommitmentConfirmed)
	assert.Error(t, err)
	assert.NotEqual(t, ErrNoAccountInfo, err)
	assert.Len(t, server.calls(), 1)
}
