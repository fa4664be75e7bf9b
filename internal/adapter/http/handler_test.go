package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/neomorfeo/marketflow/internal/adapter/fsm"
	adapter "github.com/neomorfeo/marketflow/internal/adapter/http"
	"github.com/neomorfeo/marketflow/internal/adapter/sqlite"
	"github.com/neomorfeo/marketflow/internal/app"
	"github.com/neomorfeo/marketflow/internal/domain"
)

// noopPublisher is a no-op EventPublisher for tests.
type noopPublisher struct{}

func (p *noopPublisher) Publish(_ context.Context, _ domain.Transaction, _ domain.TransitionRecord) error {
	return nil
}

type testServer struct {
	*httptest.Server
	repo *sqlite.TransactionRepository
}

// newTestServer creates a full-stack httptest.Server with SQLite in-memory.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := app.NewTransactionService(repo, &noopPublisher{}, fsm.New())

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("marketflow", "0.1.0"))
	adapter.Register(api, svc)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, repo: repo}
}

// doRequest performs an HTTP request with context (avoids noctx linter).
func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

// mustInitiate starts a transaction via the API and returns its response.
func mustInitiate(t *testing.T, srv *testServer, body string) adapter.TransactionResponse {
	t.Helper()

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/transactions", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("initiate: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	return decode[adapter.TransactionResponse](t, resp)
}

func mustTransition(t *testing.T, srv *testServer, id, endpoint, body string) adapter.TransactionResponse {
	t.Helper()

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/transactions/"+id+"/"+endpoint, body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s: status = %d, want %d", endpoint, resp.StatusCode, http.StatusOK)
	}
	return decode[adapter.TransactionResponse](t, resp)
}

const (
	inquireBody = `{"processName":"sell-purchase","transition":"transition/inquire","actor":"customer"}`
	offerBody   = `{"processName":"default-negotiation","transition":"transition/make-offer","actor":"provider","offerInSubunits":1000}`
)

func offersOf(t *testing.T, tx adapter.TransactionResponse) []domain.Offer {
	t.Helper()
	if tx.Metadata.OffersMalformed() {
		t.Fatalf("malformed offers: %s", tx.Metadata.Extra["offers"])
	}
	return tx.Metadata.Offers
}

// --- Initiate ---

func TestInitiate(t *testing.T) {
	srv := newTestServer(t)
	tx := mustInitiate(t, srv, inquireBody)

	if tx.ID == "" {
		t.Error("ID should not be empty")
	}
	if tx.ProcessName != "sell-purchase" {
		t.Errorf("ProcessName = %q, want %q", tx.ProcessName, "sell-purchase")
	}
	if tx.State != "inquiry" {
		t.Errorf("State = %q, want %q", tx.State, "inquiry")
	}
	if len(tx.Transitions) != 1 || tx.Transitions[0].By != "customer" {
		t.Errorf("Transitions = %+v", tx.Transitions)
	}
	if tx.CreatedAt == "" {
		t.Error("CreatedAt should not be empty")
	}
}

func TestInitiate_KeepsMetadata(t *testing.T) {
	srv := newTestServer(t)
	tx := mustInitiate(t, srv, `{"processName":"default-negotiation","transition":"transition/make-offer","actor":"provider","offerInSubunits":1000,"metadata":{"listingId":"l-1"}}`)

	if got := string(tx.Metadata.Extra["listingId"]); got != `"l-1"` {
		t.Errorf("metadata.listingId = %s, want %q", got, "l-1")
	}
	offers := offersOf(t, tx)
	if len(offers) != 1 || offers[0].OfferInSubunits != 1000 {
		t.Errorf("offers = %+v", offers)
	}
}

func TestInitiate_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown process", `{"processName":"default-booking","transition":"transition/inquire","actor":"customer"}`, http.StatusNotFound},
		{"not from initial", `{"processName":"sell-purchase","transition":"transition/confirm-payment","actor":"customer"}`, http.StatusUnprocessableEntity},
		{"wrong actor", `{"processName":"sell-purchase","transition":"transition/inquire","actor":"provider"}`, http.StatusForbidden},
		{"offer without amount", `{"processName":"default-negotiation","transition":"transition/make-offer","actor":"provider"}`, http.StatusUnprocessableEntity},
		{"invalid actor value", `{"processName":"sell-purchase","transition":"transition/inquire","actor":"admin"}`, http.StatusUnprocessableEntity},
		{"metadata not an object", `{"processName":"sell-purchase","transition":"transition/inquire","actor":"customer","metadata":[1]}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)

			resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/transactions", tt.body)
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestInitiate_LargeIntegersAreExact(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/transactions",
		`{"processName":"default-negotiation","transition":"transition/make-offer","actor":"provider","offerInSubunits":9007199254740993,"metadata":{"listingVersion":9007199254740995}}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	for _, want := range []string{`"offerInSubunits":9007199254740993`, `"listingVersion":9007199254740995`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("body missing %s: %s", want, raw)
		}
	}

	var tx adapter.TransactionResponse
	if err := json.Unmarshal(raw, &tx); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if offers := offersOf(t, tx); len(offers) != 1 || offers[0].OfferInSubunits != 9007199254740993 {
		t.Errorf("offers = %+v", offers)
	}
}

func TestInitiate_MalformedOffers(t *testing.T) {
	t.Run("offer-bearing transition", func(t *testing.T) {
		srv := newTestServer(t)

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/transactions",
			`{"processName":"default-negotiation","transition":"transition/make-offer","actor":"provider","offerInSubunits":1,"metadata":{"offers":"garbage"}}`)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
		var body struct {
			Message string                     `json:"message"`
			Data    map[string]json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Message != "Past negotiation offers are invalid" {
			t.Errorf("message = %q", body.Message)
		}
		if got := string(body.Data["offers"]); got != "null" {
			t.Errorf("data.offers = %s, want null", got)
		}
		if got := string(body.Data["relevantTransitions"]); got != "[]" {
			t.Errorf("data.relevantTransitions = %s, want []", got)
		}
	})

	t.Run("other transition", func(t *testing.T) {
		srv := newTestServer(t)
		tx := mustInitiate(t, srv,
			`{"processName":"default-negotiation","transition":"transition/inquire","actor":"customer","metadata":{"offers":"garbage"}}`)

		if tx.State != "inquiry" {
			t.Errorf("State = %q, want %q", tx.State, "inquiry")
		}
		if got := string(tx.Metadata.Extra["offers"]); got != `"garbage"` {
			t.Errorf("metadata.offers = %s, want %q", got, "garbage")
		}
	})
}

// --- Negotiation ---

func TestNegotiation_CounterAndRevoke(t *testing.T) {
	srv := newTestServer(t)
	tx := mustInitiate(t, srv, offerBody)

	tx = mustTransition(t, srv, tx.ID, "privileged-transitions",
		`{"transition":"transition/customer-make-counter-offer","actor":"customer","offerInSubunits":800}`)
	if tx.State != "customer-offer-pending" {
		t.Errorf("State = %q, want %q", tx.State, "customer-offer-pending")
	}

	tx = mustTransition(t, srv, tx.ID, "privileged-transitions",
		`{"transition":"transition/customer-revoke-counter-offer","actor":"customer"}`)
	if tx.State != "offer-pending" {
		t.Errorf("State = %q, want %q", tx.State, "offer-pending")
	}

	offers := offersOf(t, tx)
	want := []int64{1000, 800, 1000}
	if len(offers) != len(want) {
		t.Fatalf("offers = %+v", offers)
	}
	for i, amount := range want {
		if offers[i].OfferInSubunits != amount {
			t.Errorf("offers[%d] = %d, want %d", i, offers[i].OfferInSubunits, amount)
		}
	}
}

func TestNegotiation_DirectPathRejectsPrivileged(t *testing.T) {
	srv := newTestServer(t)
	tx := mustInitiate(t, srv, offerBody)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/transactions/"+tx.ID+"/transitions",
		`{"transition":"transition/customer-make-counter-offer","actor":"customer","offerInSubunits":800}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestNegotiation_InvalidHistory(t *testing.T) {
	srv := newTestServer(t)
	tx := mustInitiate(t, srv, offerBody)

	// Drop the recorded offers behind the service's back.
	if _, err := srv.repo.DB().Exec(`UPDATE transactions SET metadata = '{}' WHERE id = ?`, tx.ID); err != nil {
		t.Fatalf("corrupting metadata: %v", err)
	}

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/transactions/"+tx.ID+"/privileged-transitions",
		`{"transition":"transition/customer-make-counter-offer","actor":"customer","offerInSubunits":800}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var body struct {
		Message    string `json:"message"`
		Status     int    `json:"status"`
		StatusText string `json:"statusText"`
		Data       struct {
			Offers              []domain.Offer            `json:"offers"`
			RelevantTransitions []domain.TransitionRecord `json:"relevantTransitions"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body.Message != "Past negotiation offers are invalid" {
		t.Errorf("message = %q", body.Message)
	}
	if body.Status != 400 || body.StatusText != body.Message {
		t.Errorf("status = %d, statusText = %q", body.Status, body.StatusText)
	}
	if body.Data.Offers == nil || len(body.Data.Offers) != 0 {
		t.Errorf("data.offers = %v, want []", body.Data.Offers)
	}
	if len(body.Data.RelevantTransitions) != 1 ||
		body.Data.RelevantTransitions[0].Transition != "transition/make-offer" {
		t.Errorf("data.relevantTransitions = %+v", body.Data.RelevantTransitions)
	}

	// Nothing was recorded.
	got := doRequest(t, http.MethodGet, srv.URL+"/api/v1/transactions/"+tx.ID, "")
	defer got.Body.Close()
	if stored := decode[adapter.TransactionResponse](t, got); stored.State != "offer-pending" {
		t.Errorf("State = %q, want %q", stored.State, "offer-pending")
	}
}

// --- Get ---

func TestGet(t *testing.T) {
	srv := newTestServer(t)
	created := mustInitiate(t, srv, inquireBody)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/transactions/"+created.ID, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	tx := decode[adapter.TransactionResponse](t, resp)
	if tx.ID != created.ID {
		t.Errorf("ID = %q, want %q", tx.ID, created.ID)
	}
	if tx.LastTransition != "transition/inquire" {
		t.Errorf("LastTransition = %q, want %q", tx.LastTransition, "transition/inquire")
	}
}

func TestGet_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/transactions/nonexistent", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

// --- List ---

func TestList(t *testing.T) {
	srv := newTestServer(t)
	mustInitiate(t, srv, inquireBody)
	mustInitiate(t, srv, offerBody)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/transactions", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if txs := decode[[]adapter.TransactionResponse](t, resp); len(txs) != 2 {
		t.Errorf("got %d transactions, want 2", len(txs))
	}
}

func TestList_Filters(t *testing.T) {
	srv := newTestServer(t)
	mustInitiate(t, srv, inquireBody)
	mustInitiate(t, srv, inquireBody)
	paid := mustInitiate(t, srv, inquireBody)
	mustTransition(t, srv, paid.ID, "privileged-transitions", `{"transition":"transition/request-payment-after-inquiry","actor":"customer"}`)
	mustTransition(t, srv, paid.ID, "transitions", `{"transition":"transition/confirm-payment","actor":"customer"}`)
	mustInitiate(t, srv, offerBody)

	tests := []struct {
		query string
		want  int
	}{
		{"?processName=sell-purchase", 3},
		{"?state=inquiry", 2},
		{"?state=inquiry,purchased", 3},
		{"?processName=sell-purchase&attention=provider", 1},
		{"?processName=default-negotiation&attention=customer", 1},
		{"?processName=default-negotiation&attention=provider", 0},
		{"?limit=1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/transactions"+tt.query, "")
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
			}
			if txs := decode[[]adapter.TransactionResponse](t, resp); len(txs) != tt.want {
				t.Errorf("got %d transactions, want %d", len(txs), tt.want)
			}
		})
	}
}

func TestList_AttentionWithoutProcess(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/transactions?attention=customer", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

// --- Transition ---

func TestTransition_SellPurchase(t *testing.T) {
	srv := newTestServer(t)
	tx := mustInitiate(t, srv, inquireBody)

	tx = mustTransition(t, srv, tx.ID, "privileged-transitions", `{"transition":"transition/request-payment-after-inquiry","actor":"customer"}`)
	steps := []struct {
		body  string
		state string
	}{
		{`{"transition":"transition/confirm-payment","actor":"customer"}`, "purchased"},
		{`{"transition":"transition/mark-delivered","actor":"provider"}`, "delivered"},
		{`{"transition":"transition/mark-received","actor":"customer"}`, "received"},
	}
	for _, step := range steps {
		tx = mustTransition(t, srv, tx.ID, "transitions", step.body)
		if tx.State != step.state {
			t.Errorf("State = %q, want %q", tx.State, step.state)
		}
	}
	if len(tx.Transitions) != 5 {
		t.Errorf("len(Transitions) = %d, want 5", len(tx.Transitions))
	}
}

func TestTransition_Illegal(t *testing.T) {
	srv := newTestServer(t)
	tx := mustInitiate(t, srv, inquireBody)

	// mark-delivered is not valid from "inquiry".
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/transactions/"+tx.ID+"/transitions", `{"transition":"transition/mark-delivered","actor":"provider"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestTransition_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/transactions/nonexistent/transitions", `{"transition":"transition/confirm-payment","actor":"customer"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

// --- History and next transitions ---

func TestHistory(t *testing.T) {
	srv := newTestServer(t)
	tx := mustInitiate(t, srv, inquireBody)
	mustTransition(t, srv, tx.ID, "privileged-transitions", `{"transition":"transition/request-payment-after-inquiry","actor":"customer"}`)
	mustTransition(t, srv, tx.ID, "transitions", `{"transition":"transition/confirm-payment","actor":"customer"}`)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/transactions/"+tx.ID+"/history", "")
	defer resp.Body.Close()

	history := decode[[]adapter.TransitionResponse](t, resp)
	if len(history) != 1 || history[0].Transition != "transition/confirm-payment" {
		t.Errorf("history = %+v", history)
	}
}

func TestNextTransitions(t *testing.T) {
	srv := newTestServer(t)
	tx := mustInitiate(t, srv, offerBody)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/transactions/"+tx.ID+"/next-transitions?actor=provider", "")
	defer resp.Body.Close()

	next := decode[[]adapter.NextTransitionResponse](t, resp)
	if len(next) != 1 {
		t.Fatalf("next = %+v", next)
	}
	if next[0].Transition != "transition/provider-revoke-counter-offer" || !next[0].Privileged {
		t.Errorf("next[0] = %+v", next[0])
	}
}

// --- Processes ---

func TestProcesses(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/processes", "")
	defer resp.Body.Close()

	got := decode[[]adapter.ProcessSummary](t, resp)
	if len(got) != 2 {
		t.Fatalf("processes = %+v", got)
	}
	if got[1].Name != "sell-purchase" || got[1].GraphID != "sell-purchase/release-1" {
		t.Errorf("processes[1] = %+v", got[1])
	}
}

func TestGetProcess(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/processes/default-negotiation", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	p := decode[adapter.ProcessResponse](t, resp)
	if p.Graph.Initial != "initial" {
		t.Errorf("initial = %q", p.Graph.Initial)
	}
	if got := p.Actors["transition/make-offer"]; got != "provider" {
		t.Errorf("actor of make-offer = %q, want provider", got)
	}
	if len(p.Graph.States) == 0 {
		t.Error("graph has no states")
	}
}

func TestGetProcess_Unknown(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+fmt.Sprintf("/api/v1/processes/%s", "default-booking"), "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
