package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	svcerr "github.com/chaintrace/registry/internal/errors"
	"github.com/chaintrace/registry/internal/registry"
)

func mintInput() registry.CreateInput {
	return registry.CreateInput{
		BatchID:       "BATCH-7",
		Certification: "ISO-9001",
		Origin:        "Lyon",
		CreatedAt:     1735689600,
	}
}

const testContractHash = "0x1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d"

// fakeNode serves canned JSON-RPC responses keyed by method.
type fakeNode struct {
	t         *testing.T
	responses map[string]string
	calls     []string
}

func (f *fakeNode) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Fatalf("decode request: %v", err)
		}
		f.calls = append(f.calls, req.Method)

		body, ok := f.responses[req.Method]
		if !ok {
			f.t.Fatalf("unexpected RPC method %s", req.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, body)
	}
}

func newTestContract(t *testing.T, node *fakeNode) (*RegistryContract, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(node.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{RPCURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return NewRegistryContract(client, testContractHash, "0xsigner"), srv
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestGetProduct(t *testing.T) {
	stack := fmt.Sprintf(`{
		"script": "",
		"state": "HALT",
		"gasconsumed": "100",
		"stack": [{"type":"Struct","value":[
			{"type":"ByteString","value":"%s"},
			{"type":"ByteString","value":"%s"},
			{"type":"ByteString","value":"%s"},
			{"type":"Integer","value":"1735689600"},
			{"type":"ByteString","value":"%s"},
			{"type":"Integer","value":"1"}
		]}]
	}`, b64("BATCH-1"), b64("ISO-9001"), b64("Lyon"), base64.StdEncoding.EncodeToString([]byte{0xaa, 0xbb}))

	node := &fakeNode{t: t, responses: map[string]string{"invokefunction": stack}}
	contract, _ := newTestContract(t, node)

	p, err := contract.GetProduct(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p.ID != 3 {
		t.Errorf("ID = %d, want 3", p.ID)
	}
	if p.BatchID != "BATCH-1" || p.Certification != "ISO-9001" || p.Origin != "Lyon" {
		t.Errorf("unexpected fields: %+v", p)
	}
	if p.CreatedAt != 1735689600 {
		t.Errorf("CreatedAt = %d", p.CreatedAt)
	}
	if p.Owner != "0xbbaa" {
		t.Errorf("Owner = %q, want 0xbbaa", p.Owner)
	}
	if p.Status.String() != "Verified" {
		t.Errorf("Status = %s, want Verified", p.Status)
	}
}

func TestGetProductMissingMapsToNotFound(t *testing.T) {
	node := &fakeNode{t: t, responses: map[string]string{
		"invokefunction": `{"script":"","state":"FAULT","gasconsumed":"0","exception":"Product does not exist","stack":[]}`,
	}}
	contract, _ := newTestContract(t, node)

	_, err := contract.GetProduct(context.Background(), 404)
	if !svcerr.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestTotalProducts(t *testing.T) {
	node := &fakeNode{t: t, responses: map[string]string{
		"invokefunction": `{"script":"","state":"HALT","gasconsumed":"10","stack":[{"type":"Integer","value":"12"}]}`,
	}}
	contract, _ := newTestContract(t, node)

	n, err := contract.TotalProducts(context.Background())
	if err != nil {
		t.Fatalf("TotalProducts: %v", err)
	}
	if n != 12 {
		t.Errorf("got %d, want 12", n)
	}
}

func TestMintProductReadsIDFromNotification(t *testing.T) {
	appLog := fmt.Sprintf(`{
		"txid": "0xtx1",
		"executions": [{
			"trigger": "Application",
			"vmstate": "HALT",
			"gasconsumed": "500",
			"stack": [],
			"notifications": [{
				"contract": "%s",
				"eventname": "ProductMinted",
				"state": {"type":"Array","value":[
					{"type":"Integer","value":"7"},
					{"type":"ByteString","value":"%s"},
					{"type":"ByteString","value":"%s"}
				]}
			}]
		}]
	}`, testContractHash, base64.StdEncoding.EncodeToString([]byte{0x01}), b64("BATCH-7"))

	node := &fakeNode{t: t, responses: map[string]string{
		"invokefunction":    `{"script":"","state":"HALT","gasconsumed":"500","stack":[],"tx":"0xtx1"}`,
		"getapplicationlog": appLog,
	}}
	contract, _ := newTestContract(t, node)

	res, err := contract.MintProduct(context.Background(), mintInput())
	if err != nil {
		t.Fatalf("MintProduct: %v", err)
	}
	if res.ProductID != 7 {
		t.Errorf("ProductID = %d, want 7", res.ProductID)
	}
	if res.TxHash != "0xtx1" {
		t.Errorf("TxHash = %q, want 0xtx1", res.TxHash)
	}
}

func TestVerifyProductGuardFaultMapsToUnauthorized(t *testing.T) {
	node := &fakeNode{t: t, responses: map[string]string{
		"invokefunction": `{"script":"","state":"FAULT","gasconsumed":"0","exception":"Only distributor can verify","stack":[]}`,
	}}
	contract, _ := newTestContract(t, node)

	_, err := contract.VerifyProduct(context.Background(), 1)
	if !svcerr.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestFinalizeProductStatusFaultMapsToInvalidTransition(t *testing.T) {
	node := &fakeNode{t: t, responses: map[string]string{
		"invokefunction": `{"script":"","state":"FAULT","gasconsumed":"0","exception":"Invalid status for finalize","stack":[]}`,
	}}
	contract, _ := newTestContract(t, node)

	_, err := contract.FinalizeProduct(context.Background(), 1)
	if !svcerr.IsInvalidTransition(err) {
		t.Fatalf("expected invalid_transition, got %v", err)
	}
}

func TestUnreachableNodeMapsToConnection(t *testing.T) {
	client, err := NewClient(Config{RPCURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	contract := NewRegistryContract(client, testContractHash, "0xsigner")

	_, err = contract.TotalProducts(context.Background())
	if !svcerr.IsConnection(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
}
