package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pettrace/internal/adapters/auth/walletsig"
	"pettrace/internal/platform/config"
	"pettrace/internal/platform/logger"
	"pettrace/internal/router"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	ownerAddr  = "0x00000000000000000000000000000000000000A1"
	finderAddr = "0x00000000000000000000000000000000000000B2"
	otherAddr  = "0x00000000000000000000000000000000000000C3"
)

type report struct {
	ID                 uint64 `json:"id"`
	Owner              string `json:"owner"`
	EthBounty          string `json:"eth_bounty"`
	TokenBounty        string `json:"token_bounty"`
	EthBountyDisplay   string `json:"eth_bounty_display"`
	TokenBountyDisplay string `json:"token_bounty_display"`
	Currency           string `json:"currency"`
	Finder             string `json:"finder"`
	IsFound            bool   `json:"is_found"`
	BountyClaimed      bool   `json:"bounty_claimed"`
	Status             string `json:"status"`
}

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func newServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.DevFaucet = true

	app, err := router.New(context.Background(), router.Options{Config: cfg, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	ts := httptest.NewServer(app)
	t.Cleanup(func() {
		ts.Close()
		if err := app.Close(); err != nil {
			t.Errorf("close app: %v", err)
		}
	})
	return ts
}

func TestHTTP_EndToEnd_NativeBountySettlement(t *testing.T) {
	ts := newServer(t, nil)

	mint(t, ts.URL, ownerAddr, "1000000000000000000", "")

	// 1) Dueño publica con 0.5 ETH
	rep := postReport(t, ts.URL, ownerAddr, map[string]any{
		"name":               "Luna",
		"breed":              "beagle",
		"gender":             "female",
		"size_cm":            40,
		"age_months":         18,
		"last_seen_location": "Parque Centenario",
		"contact_name":       "Ana",
		"eth_bounty":         "0.5",
	})
	if rep.ID != 0 || rep.Status != "created" || rep.Currency != "native" {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.EthBounty != "500000000000000000" || rep.EthBountyDisplay != "0.5000 ETH" {
		t.Fatalf("unexpected bounty: %s / %s", rep.EthBounty, rep.EthBountyDisplay)
	}

	// 2) El dueño no puede marcar su propia mascota
	{
		st, body := doReq(t, ts.URL, "POST", "/reports/0/found", ownerAddr, nil)
		expectError(t, st, body, http.StatusForbidden, "authorization")
	}

	// 3) Finder la marca
	{
		st, body := doReq(t, ts.URL, "POST", "/reports/0/found", finderAddr, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 found, got %d body=%s", st, string(body))
		}
		var got report
		_ = json.Unmarshal(body, &got)
		if !strings.EqualFold(got.Finder, finderAddr) || got.Status != "finder_claimed" || got.IsFound {
			t.Fatalf("unexpected report after found: %+v", got)
		}
	}

	// 4) Un segundo finder pierde
	{
		st, body := doReq(t, ts.URL, "POST", "/reports/0/found", otherAddr, nil)
		expectError(t, st, body, http.StatusConflict, "state")
	}

	// 5) Cobrar antes de la confirmación falla
	{
		st, body := doReq(t, ts.URL, "POST", "/reports/0/claim", finderAddr, nil)
		expectError(t, st, body, http.StatusConflict, "state")
	}

	// 6) Dueño confirma
	{
		st, body := doReq(t, ts.URL, "POST", "/reports/0/confirm", ownerAddr, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 confirm, got %d body=%s", st, string(body))
		}
	}

	// 7) Finder cobra, una sola vez
	{
		st, body := doReq(t, ts.URL, "POST", "/reports/0/claim", finderAddr, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 claim, got %d body=%s", st, string(body))
		}
		var got report
		_ = json.Unmarshal(body, &got)
		if !got.BountyClaimed || got.Status != "settled" {
			t.Fatalf("unexpected report after claim: %+v", got)
		}

		st, body = doReq(t, ts.URL, "POST", "/reports/0/claim", finderAddr, nil)
		expectError(t, st, body, http.StatusConflict, "state")
	}

	// 8) Saldos
	{
		st, body := doReq(t, ts.URL, "GET", "/wallets/"+finderAddr, "", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 balances, got %d body=%s", st, string(body))
		}
		var b struct {
			Native        string `json:"native"`
			NativeDisplay string `json:"native_display"`
		}
		_ = json.Unmarshal(body, &b)
		if b.Native != "500000000000000000" || b.NativeDisplay != "0.5000 ETH" {
			t.Fatalf("unexpected finder balance: %+v", b)
		}
	}

	// 9) Log de eventos del aviso
	{
		st, body := doReq(t, ts.URL, "GET", "/reports/0/events", "", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 events, got %d body=%s", st, string(body))
		}
		var evs []struct {
			Type  string `json:"type"`
			Actor string `json:"actor"`
		}
		_ = json.Unmarshal(body, &evs)
		want := []string{"pet_posted", "found_claimed", "owner_confirmed", "bounty_claimed"}
		if len(evs) != len(want) {
			t.Fatalf("expected %d events, got %d body=%s", len(want), len(evs), string(body))
		}
		for i, w := range want {
			if evs[i].Type != w {
				t.Fatalf("event %d: expected %s, got %s", i, w, evs[i].Type)
			}
		}
		if !strings.EqualFold(evs[3].Actor, finderAddr) {
			t.Fatalf("expected claim actor to be finder, got %s", evs[3].Actor)
		}

		st, body = doReq(t, ts.URL, "GET", "/events?types=bounty_claimed", "", nil)
		if st != http.StatusOK || strings.Count(string(body), `"bounty_claimed"`) != 1 {
			t.Fatalf("expected one bounty_claimed in global log, got %d body=%s", st, string(body))
		}
	}
}

func TestHTTP_TokenBountyAndCancel(t *testing.T) {
	ts := newServer(t, nil)

	mint(t, ts.URL, ownerAddr, "", "100000000")

	// Sin approve: la transferencia a custodia falla y no se consume id
	{
		st, body := doReq(t, ts.URL, "POST", "/reports", ownerAddr, map[string]any{
			"name":         "Milo",
			"token_bounty": "25.50",
		})
		expectError(t, st, body, http.StatusUnprocessableEntity, "transfer")
	}

	{
		st, body := doReq(t, ts.URL, "POST", "/wallets/approve", ownerAddr, map[string]any{"amount": "25500000"})
		if st != http.StatusNoContent {
			t.Fatalf("expected 204 approve, got %d body=%s", st, string(body))
		}
	}

	rep := postReport(t, ts.URL, ownerAddr, map[string]any{
		"name":         "Milo",
		"token_bounty": "25.50",
	})
	if rep.ID != 0 || rep.TokenBounty != "25500000" || rep.TokenBountyDisplay != "25.50 USDC" || rep.Currency != "token" {
		t.Fatalf("unexpected token report: %+v", rep)
	}

	// Otro no puede cancelar; el dueño sí, y recupera el escrow
	{
		st, body := doReq(t, ts.URL, "POST", "/reports/0/cancel", otherAddr, nil)
		expectError(t, st, body, http.StatusForbidden, "authorization")

		st, body = doReq(t, ts.URL, "POST", "/reports/0/cancel", ownerAddr, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 cancel, got %d body=%s", st, string(body))
		}

		st, body = doReq(t, ts.URL, "POST", "/reports/0/found", finderAddr, nil)
		expectError(t, st, body, http.StatusConflict, "state")
	}

	{
		_, body := doReq(t, ts.URL, "GET", "/wallets/"+ownerAddr, "", nil)
		var b struct {
			Token string `json:"token"`
		}
		_ = json.Unmarshal(body, &b)
		if b.Token != "100000000" {
			t.Fatalf("expected token refunded, got %s", b.Token)
		}
	}
}

func TestHTTP_ReadsAndErrors(t *testing.T) {
	ts := newServer(t, nil)

	{
		st, body := doReq(t, ts.URL, "GET", "/reports", "", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 list, got %d", st)
		}
		var list struct {
			IDs     []uint64 `json:"ids"`
			Reports []report `json:"reports"`
		}
		_ = json.Unmarshal(body, &list)
		if list.IDs == nil || len(list.IDs) != 0 || len(list.Reports) != 0 {
			t.Fatalf("expected empty arrays, got body=%s", string(body))
		}
	}

	{
		st, body := doReq(t, ts.URL, "GET", "/reports/999", "", nil)
		expectError(t, st, body, http.StatusNotFound, "not_found")
	}
	{
		st, _ := doReq(t, ts.URL, "GET", "/reports/abc", "", nil)
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 for bad id, got %d", st)
		}
	}
	{
		st, body := doReq(t, ts.URL, "POST", "/reports", "", map[string]any{"name": "x"})
		expectError(t, st, body, http.StatusUnauthorized, "unauthenticated")
	}
	{
		st, body := doReq(t, ts.URL, "POST", "/reports", ownerAddr, map[string]any{"value": "1", "eth_bounty": "1"})
		expectError(t, st, body, http.StatusBadRequest, "invalid_input")
	}
	{
		st, _ := doReq(t, ts.URL, "GET", "/reports/999/events", "", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 events for unknown report, got %d", st)
		}
	}
	{
		st, _ := doReq(t, ts.URL, "GET", "/events?types=vaccine", "", nil)
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown event type, got %d", st)
		}
	}

	// Paginado
	mint(t, ts.URL, ownerAddr, "10", "")
	for i := 0; i < 3; i++ {
		postReport(t, ts.URL, ownerAddr, map[string]any{"name": "p"})
	}
	{
		st, body := doReq(t, ts.URL, "GET", "/reports?offset=1&limit=1", "", nil)
		var list struct {
			IDs []uint64 `json:"ids"`
		}
		_ = json.Unmarshal(body, &list)
		if st != http.StatusOK || len(list.IDs) != 1 || list.IDs[0] != 1 {
			t.Fatalf("unexpected page: %d body=%s", st, string(body))
		}
	}
}

func TestHTTP_OpsEndpoints(t *testing.T) {
	ts := newServer(t, nil)
	postReport(t, ts.URL, ownerAddr, map[string]any{"name": "Luna"})

	st, body := doReq(t, ts.URL, "GET", "/health", "", nil)
	if st != http.StatusOK || string(body) != "ok" {
		t.Fatalf("expected health ok, got %d %s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "GET", "/metrics", "", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 metrics, got %d", st)
	}
	if !strings.Contains(string(body), `pettrace_registry_operations_total{operation="post_lost_pet",result="ok"} 1`) {
		t.Fatalf("expected post counter in metrics, got %s", string(body))
	}

	st, body = doReq(t, ts.URL, "GET", "/swagger/doc.json", "", nil)
	if st != http.StatusOK || !strings.Contains(string(body), "PetTrace API") {
		t.Fatalf("expected swagger doc, got %d", st)
	}
}

func TestHTTP_WalletAuthAndBolt(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Mode = config.AuthWallet
	cfg.Storage.Driver = config.StorageBolt
	cfg.Storage.BoltPath = filepath.Join(t.TempDir(), "pettrace.db")
	ts := newServer(t, cfg)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	token, err := walletsig.Token(key, time.Now())
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	// El header de debug no alcanza en modo wallet
	{
		st, body := doReq(t, ts.URL, "POST", "/reports", ownerAddr, map[string]any{"name": "Luna"})
		expectError(t, st, body, http.StatusUnauthorized, "unauthenticated")
	}

	req, _ := http.NewRequest("POST", ts.URL+"/reports", strings.NewReader(`{"name":"Luna"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 with wallet token, got %d body=%s", res.StatusCode, string(body))
	}
	var rep report
	_ = json.Unmarshal(body, &rep)
	if rep.Owner != crypto.PubkeyToAddress(key.PublicKey).Hex() {
		t.Fatalf("expected owner %s, got %s", crypto.PubkeyToAddress(key.PublicKey).Hex(), rep.Owner)
	}

	st, _ := doReq(t, ts.URL, "GET", "/reports/0", "", nil)
	if st != http.StatusOK {
		t.Fatalf("expected report persisted in bolt, got %d", st)
	}
}

func mint(t *testing.T, baseURL, addr, native, token string) {
	t.Helper()
	st, body := doReq(t, baseURL, "POST", "/wallets/mint", "", map[string]any{
		"address": addr,
		"native":  native,
		"token":   token,
	})
	if st != http.StatusNoContent {
		t.Fatalf("expected 204 mint, got %d body=%s", st, string(body))
	}
}

func postReport(t *testing.T, baseURL, caller string, payload map[string]any) report {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/reports", caller, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 post report, got %d body=%s", st, string(body))
	}
	var rep report
	if err := json.Unmarshal(body, &rep); err != nil {
		t.Fatalf("post report: %v body=%s", err, string(body))
	}
	return rep
}

func expectError(t *testing.T, st int, body []byte, wantStatus int, wantKind string) {
	t.Helper()
	if st != wantStatus {
		t.Fatalf("expected %d, got %d body=%s", wantStatus, st, string(body))
	}
	var e apiError
	_ = json.Unmarshal(body, &e)
	if e.Kind != wantKind || e.Error == "" {
		t.Fatalf("expected kind %s, got %+v", wantKind, e)
	}
}

func doReq(t *testing.T, baseURL, method, path, caller string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set("X-Debug-Caller", caller)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}

func TestHTTP_BoltEscrowSurvivesRestart(t *testing.T) {
	cfg := config.Default()
	cfg.DevFaucet = true
	cfg.Storage.Driver = config.StorageBolt
	cfg.Storage.BoltPath = filepath.Join(t.TempDir(), "pettrace.db")

	open := func() (*router.App, *httptest.Server) {
		app, err := router.New(context.Background(), router.Options{Config: cfg, Logger: logger.Nop()})
		if err != nil {
			t.Fatalf("router: %v", err)
		}
		return app, httptest.NewServer(app)
	}

	app, ts := open()
	mint(t, ts.URL, ownerAddr, "1000", "")
	postReport(t, ts.URL, ownerAddr, map[string]any{"name": "Luna", "value": "300"})
	if st, body := doReq(t, ts.URL, "POST", "/reports/0/found", finderAddr, nil); st != http.StatusOK {
		t.Fatalf("expected 200 found, got %d body=%s", st, string(body))
	}
	if st, body := doReq(t, ts.URL, "POST", "/reports/0/confirm", ownerAddr, nil); st != http.StatusOK {
		t.Fatalf("expected 200 confirm, got %d body=%s", st, string(body))
	}
	ts.Close()
	if err := app.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reinicio: el escrow sigue en custodia y el finder puede cobrar
	app, ts = open()
	defer func() {
		ts.Close()
		_ = app.Close()
	}()

	if st, body := doReq(t, ts.URL, "POST", "/reports/0/claim", finderAddr, nil); st != http.StatusOK {
		t.Fatalf("expected 200 claim after restart, got %d body=%s", st, string(body))
	}

	var b struct {
		Native string `json:"native"`
	}
	_, body := doReq(t, ts.URL, "GET", "/wallets/"+finderAddr, "", nil)
	_ = json.Unmarshal(body, &b)
	if b.Native != "300" {
		t.Fatalf("expected finder paid 300, got %s", b.Native)
	}
	_, body = doReq(t, ts.URL, "GET", "/wallets/"+ownerAddr, "", nil)
	_ = json.Unmarshal(body, &b)
	if b.Native != "700" {
		t.Fatalf("expected owner left with 700, got %s", b.Native)
	}
}

func TestHTTP_RejectsHostileBodies(t *testing.T) {
	ts := newServer(t, nil)

	{
		start := time.Now()
		st, body := doReq(t, ts.URL, "POST", "/reports", ownerAddr, map[string]any{"name": "x", "eth_bounty": "1e200000000"})
		expectError(t, st, body, http.StatusBadRequest, "invalid_input")
		if time.Since(start) > 2*time.Second {
			t.Fatalf("expected exponent rejected quickly")
		}
	}
	{
		st, body := doReq(t, ts.URL, "POST", "/reports", ownerAddr, map[string]any{"name": "x", "value": strings.Repeat("9", 100)})
		expectError(t, st, body, http.StatusBadRequest, "invalid_input")
	}
	{
		st, body := doReq(t, ts.URL, "POST", "/reports", ownerAddr, map[string]any{"name": "x", "bounty": "1"})
		expectError(t, st, body, http.StatusBadRequest, "invalid_input")
	}
	{
		st, body := doReq(t, ts.URL, "POST", "/reports", ownerAddr, map[string]any{"description": strings.Repeat("a", config.DefaultMaxBodyBytes)})
		expectError(t, st, body, http.StatusBadRequest, "invalid_input")
	}
	{
		st, _ := doReq(t, ts.URL, "POST", "/wallets/mint", "", map[string]any{"address": ownerAddr, "native": "1", "extra": true})
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown mint field, got %d", st)
		}
	}

	st, body := doReq(t, ts.URL, "GET", "/reports", "", nil)
	if st != http.StatusOK || !strings.Contains(string(body), `"ids":[]`) {
		t.Fatalf("expected no report created, got %d %s", st, string(body))
	}
}
