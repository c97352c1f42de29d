package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newNode serves canned JSON-RPC results keyed by method and records the
// methods it saw.
func newNode(t *testing.T, results map[string]interface{}) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		seen = append(seen, req.Method)

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if result, ok := results[req.Method]; ok {
			resp["result"] = result
		} else {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func statusResult(entry interface{}) map[string]interface{} {
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": 10},
		"value":   []interface{}{entry},
	}
}

func TestLatestBlockhash(t *testing.T) {
	want := solana.Hash{1, 2, 3}
	srv, seen := newNode(t, map[string]interface{}{
		"getLatestBlockhash": map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value": map[string]interface{}{
				"blockhash":            want.String(),
				"lastValidBlockHeight": 200,
			},
		},
	})

	got, err := NewClient(srv.URL).LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"getLatestBlockhash"}, *seen)
}

func TestSubmit(t *testing.T) {
	want := solana.Signature{9, 9, 9}
	srv, seen := newNode(t, map[string]interface{}{"sendTransaction": want.String()})

	got, err := NewClient(srv.URL).Submit(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"sendTransaction"}, *seen)
}

func TestSubmitRPCError(t *testing.T) {
	srv, _ := newNode(t, map[string]interface{}{})
	_, err := NewClient(srv.URL).Submit(context.Background(), []byte{1})
	assert.Error(t, err)
}

func TestConfirmed(t *testing.T) {
	sig := solana.Signature{4}
	cases := []struct {
		name  string
		entry interface{}
		want  Status
	}{
		{"unknown signature", nil, StatusUnknown},
		{"processed", map[string]interface{}{"slot": 5, "confirmations": 0, "err": nil, "confirmationStatus": "processed"}, StatusProcessed},
		{"confirmed", map[string]interface{}{"slot": 5, "confirmations": 3, "err": nil, "confirmationStatus": "confirmed"}, StatusConfirmed},
		{"finalized", map[string]interface{}{"slot": 5, "confirmations": nil, "err": nil, "confirmationStatus": "finalized"}, StatusFinalized},
		{"failed", map[string]interface{}{"slot": 5, "confirmations": nil, "err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}, "confirmationStatus": "finalized"}, StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newNode(t, map[string]interface{}{"getSignatureStatuses": statusResult(tc.entry)})
			got, err := NewClient(srv.URL).Confirmed(context.Background(), sig)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want != StatusUnknown && tc.want != StatusFailed, got.Landed())
		})
	}
}

func TestConfirmedTransportError(t *testing.T) {
	srv, _ := newNode(t, map[string]interface{}{})
	url := srv.URL
	srv.Close()

	status, err := NewClient(url).Confirmed(context.Background(), solana.Signature{})
	assert.Error(t, err)
	assert.Equal(t, StatusUnknown, status)
}
