package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/SubhajL/online-trading-sub002/internal/bracket"
	"github.com/SubhajL/online-trading-sub002/internal/events"
	"github.com/SubhajL/online-trading-sub002/internal/gateway"
	"github.com/SubhajL/online-trading-sub002/internal/monitor"
	"github.com/SubhajL/online-trading-sub002/pkg/db"
	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// stubExchange answers every order with NEW unless place says otherwise.
type stubExchange struct {
	mu       sync.Mutex
	placed   []exchange.OrderRequest
	cancels  []string
	position decimal.Decimal
	place    func(req exchange.OrderRequest) (exchange.OrderResult, error)
}

func (s *stubExchange) PlaceOrder(_ context.Context, _ exchange.MarketType, req exchange.OrderRequest) (exchange.OrderResult, error) {
	s.mu.Lock()
	s.placed = append(s.placed, req)
	s.mu.Unlock()
	if s.place != nil {
		return s.place(req)
	}
	return exchange.OrderResult{ExchangeOrderID: "ex-" + req.ClientID, ClientID: req.ClientID, Status: exchange.StatusNew}, nil
}

func (s *stubExchange) CancelOrder(_ context.Context, venue exchange.MarketType, symbol, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels = append(s.cancels, fmt.Sprintf("%s/%s/%s", venue, symbol, orderID))
	return nil
}

func (s *stubExchange) CancelAllOpenOrders(context.Context, exchange.MarketType, string) error {
	return nil
}

func (s *stubExchange) Position(context.Context, exchange.MarketType, string, string) (decimal.Decimal, error) {
	return s.position, nil
}

func spotValidator() *filters.Validator {
	v := filters.NewValidator(string(exchange.MarketSpot), nil)
	v.Replace([]filters.SymbolFilter{{
		Symbol:     "BTCUSDT",
		BaseAsset:  "BTC",
		QuoteAsset: "USDT",
		Filters: []filters.Filter{
			filters.PriceFilter{MinPrice: d("0.01"), MaxPrice: d("1000000"), TickSize: d("0.01")},
			filters.LotSizeFilter{MinQty: d("0.00001"), MaxQty: d("9000"), StepSize: d("0.00001")},
			filters.MarketLotSizeFilter{MinQty: d("0"), MaxQty: d("100"), StepSize: d("0.00001")},
			filters.MinNotionalFilter{MinNotional: d("5"), ApplyToMarket: true},
		},
	}})
	return v
}

type testEnv struct {
	srv      *httptest.Server
	exchange *stubExchange
	bus      *events.Bus
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ex := &stubExchange{}
	bus := events.NewBus()
	rules := map[exchange.MarketType]*filters.Validator{exchange.MarketSpot: spotValidator()}
	cfg := bracket.DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 2 * time.Millisecond
	svc := bracket.NewService(ex, rules, events.BusSink{Bus: bus}, cfg, nil)

	opts := Options{
		Orders:     svc,
		Validators: rules,
		Bus:        bus,
		Metrics:    monitor.NewMetrics(bus.Dropped),
		Meta:       SystemMeta{DryRun: true, Venues: []string{"SPOT"}, Version: "test"},
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := httptest.NewServer(NewServer(opts).Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, exchange: ex, bus: bus}
}

func doJSONRequest(t *testing.T, client *http.Client, method, url, token string, payload any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func marketBuy() map[string]any {
	return map[string]any{
		"symbol":             "btcusdt",
		"side":               "buy",
		"quantity":           "0.001",
		"take_profit_prices": []string{"70000", "72000"},
		"stop_loss_price":    60000,
	}
}

type errorBody struct {
	Code           string `json:"code"`
	Error          string `json:"error"`
	BracketOrderID string `json:"bracket_order_id"`
}

func TestPlaceBracketSubmitsAllLegs(t *testing.T) {
	env := newTestEnv(t, nil)

	var resp bracketResponse
	status := doJSONRequest(t, env.srv.Client(), http.MethodPost, env.srv.URL+"/place_bracket", "", marketBuy(), &resp)
	if status != http.StatusOK {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}
	if resp.Symbol != "BTCUSDT" || resp.Side != "BUY" || !resp.Quantity.Equal(d("0.001")) {
		t.Fatalf("unexpected header fields %+v", resp)
	}
	key := bracket.BracketKey(resp.BracketOrderID)
	if !strings.HasPrefix(resp.ClientOrderIDs.Main, key+"_MAIN_") ||
		!strings.HasPrefix(resp.ClientOrderIDs.StopLoss, key+"_SL_") ||
		len(resp.ClientOrderIDs.TakeProfits) != 2 ||
		!strings.HasPrefix(resp.ClientOrderIDs.TakeProfits[1], key+"_TP_2_") {
		t.Fatalf("unexpected client ids %+v", resp.ClientOrderIDs)
	}
	if len(resp.Legs) != 4 {
		t.Fatalf("expected 4 legs, got %d", len(resp.Legs))
	}
	for _, l := range resp.Legs {
		if l.State != bracket.LegSubmitted {
			t.Errorf("leg %s state %s", l.Role, l.State)
		}
	}
	if len(env.exchange.placed) != 4 || env.exchange.placed[0].Type != exchange.OrderTypeMarket {
		t.Fatalf("entry must be sent first, got %+v", env.exchange.placed)
	}
}

func TestPlaceBracketRejectsInvalidRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantMsg string
	}{
		{"side", func(p map[string]any) { p["side"] = "hold" }, "invalid bracket request: invalid side: HOLD"},
		{"stop above entry", func(p map[string]any) {
			p["entry_price"] = "65000"
			p["stop_loss_price"] = "66000"
		}, "invalid bracket request: stop loss must be below entry for buy orders"},
		{"venue", func(p map[string]any) { p["venue"] = "COIN_M" }, "invalid bracket request: unsupported venue: COIN_M"},
		{"no take profit", func(p map[string]any) { p["take_profit_prices"] = []string{} }, "invalid bracket request: at least one take profit price is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := marketBuy()
			tt.mutate(payload)
			var resp errorBody
			status := doJSONRequest(t, env.srv.Client(), http.MethodPost, env.srv.URL+"/place_bracket", "", payload, &resp)
			if status != http.StatusBadRequest || resp.Error != tt.wantMsg {
				t.Fatalf("status=%d error=%q, expected 400 %q", status, resp.Error, tt.wantMsg)
			}
		})
	}
	if len(env.exchange.placed) != 0 {
		t.Fatalf("invalid requests reached the exchange: %+v", env.exchange.placed)
	}
}

func TestPlaceBracketMalformedBody(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := env.srv.Client().Post(env.srv.URL+"/place_bracket", "application/json", strings.NewReader(`{"quantity":"abc"`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestPlaceBracketPartialFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.exchange.place = func(req exchange.OrderRequest) (exchange.OrderResult, error) {
		if req.Type == exchange.OrderTypeStopLossLimit {
			return exchange.OrderResult{}, &exchange.ExchangeError{Venue: exchange.MarketSpot, HTTPStatus: 400, Code: -2010, Msg: "Stop price would trigger immediately."}
		}
		return exchange.OrderResult{ExchangeOrderID: "1", ClientID: req.ClientID, Status: exchange.StatusNew}, nil
	}

	var resp bracketResponse
	status := doJSONRequest(t, env.srv.Client(), http.MethodPost, env.srv.URL+"/place_bracket", "", marketBuy(), &resp)
	if status != http.StatusMultiStatus {
		t.Fatalf("status=%d, expected 207", status)
	}
	if len(resp.FailedLegs) != 1 || resp.FailedLegs[0] != bracket.RoleSL || !strings.Contains(resp.Error, "SL (") {
		t.Fatalf("unexpected partial body %+v", resp)
	}
	if resp.ClientOrderIDs.Main == "" || len(resp.Legs) != 4 {
		t.Fatalf("partial body must carry the bracket: %+v", resp)
	}
}

func TestPlaceBracketInsufficientBalance(t *testing.T) {
	env := newTestEnv(t, nil)
	env.exchange.place = func(req exchange.OrderRequest) (exchange.OrderResult, error) {
		return exchange.OrderResult{}, &exchange.ExchangeError{Venue: exchange.MarketSpot, HTTPStatus: 400, Code: -2010, Msg: "Account has insufficient balance for requested action."}
	}

	var resp errorBody
	status := doJSONRequest(t, env.srv.Client(), http.MethodPost, env.srv.URL+"/place_bracket", "", marketBuy(), &resp)
	if status != http.StatusBadRequest || resp.Error != "insufficient balance for quantity: 0.001" {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}
	if resp.BracketOrderID == "" {
		t.Fatal("expected the aborted bracket id")
	}
	if len(env.exchange.placed) != 1 {
		t.Fatalf("exits sent after entry failure: %d orders", len(env.exchange.placed))
	}
}

type fakeOrders struct {
	err error
}

func (f fakeOrders) Place(context.Context, bracket.Request) (*bracket.Bracket, error) {
	return nil, f.err
}

func (f fakeOrders) Cancel(context.Context, exchange.MarketType, string, string) error { return f.err }

func (f fakeOrders) CloseAll(context.Context, exchange.MarketType, string) (*bracket.CloseResult, error) {
	return nil, f.err
}

func TestPlaceBracketTimeout(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Orders = fakeOrders{err: &bracket.TimeoutError{Op: "place MAIN", Attempts: 4, Err: context.DeadlineExceeded}}
	})
	var resp errorBody
	status := doJSONRequest(t, env.srv.Client(), http.MethodPost, env.srv.URL+"/place_bracket", "", marketBuy(), &resp)
	if status != http.StatusGatewayTimeout || resp.Code != "TIMEOUT" {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&bracket.ValidationError{Msg: "x"}, http.StatusBadRequest},
		{fmt.Errorf("%w: TP_1 leg: %w", bracket.ErrFilterRejected, &filters.FilterViolation{Symbol: "BTCUSDT", FilterType: filters.TypeLotSize, Detail: "quantity rounds to zero"}), http.StatusBadRequest},
		{fmt.Errorf("%w: DOGEUSDT", filters.ErrUnknownSymbol), http.StatusBadRequest},
		{fmt.Errorf("%w: USDT_FUTURES", bracket.ErrVenueDisabled), http.StatusBadRequest},
		{fmt.Errorf("%w: SPOT BTCUSDT", bracket.ErrNothingToClose), http.StatusConflict},
		{fmt.Errorf("entry leg: %w", &bracket.TimeoutError{Op: "place MAIN", Err: errors.New("eof")}), http.StatusGatewayTimeout},
		{gateway.ErrGatewayUnhealthy, http.StatusServiceUnavailable},
		{&exchange.ExchangeError{HTTPStatus: 400, Code: -1013, Msg: "Filter failure: PRICE_FILTER"}, http.StatusBadGateway},
		{&exchange.ExchangeError{HTTPStatus: 400, Code: -2019, Msg: "Margin is insufficient."}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if got, _ := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %d, expected %d", tt.err, got, tt.want)
		}
	}
}

func TestCancelAcceptsNumericOrderID(t *testing.T) {
	env := newTestEnv(t, nil)
	var resp map[string]string
	status := doJSONRequest(t, env.srv.Client(), http.MethodPost, env.srv.URL+"/cancel", "", map[string]any{
		"symbol":   "BTCUSDT",
		"order_id": 28457,
	}, &resp)
	if status != http.StatusOK || resp["status"] != "success" {
		t.Fatalf("status=%d resp=%v", status, resp)
	}
	if len(env.exchange.cancels) != 1 || env.exchange.cancels[0] != "SPOT/BTCUSDT/28457" {
		t.Fatalf("unexpected cancels %v", env.exchange.cancels)
	}
}

func TestCloseAll(t *testing.T) {
	env := newTestEnv(t, nil)

	var empty errorBody
	status := doJSONRequest(t, env.srv.Client(), http.MethodPost, env.srv.URL+"/close_all", "", map[string]any{"symbol": "BTCUSDT"}, &empty)
	if status != http.StatusConflict || empty.Code != "NOTHING_TO_CLOSE" {
		t.Fatalf("flat position: status=%d resp=%+v", status, empty)
	}

	env.exchange.position = d("0.0123456")
	var resp struct {
		Status   string          `json:"status"`
		OrderID  string          `json:"order_id"`
		Side     string          `json:"side"`
		Quantity decimal.Decimal `json:"quantity"`
	}
	status = doJSONRequest(t, env.srv.Client(), http.MethodPost, env.srv.URL+"/close_all", "", map[string]any{"symbol": "BTCUSDT"}, &resp)
	if status != http.StatusOK || resp.Status != "success" || resp.Side != "SELL" || !resp.Quantity.Equal(d("0.01234")) {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}
}

func TestCloseAllUnknownVenue(t *testing.T) {
	env := newTestEnv(t, nil)
	var resp errorBody
	status := doJSONRequest(t, env.srv.Client(), http.MethodPost, env.srv.URL+"/close_all", "", map[string]any{"symbol": "BTCUSDT", "is_futures": true}, &resp)
	if status != http.StatusBadRequest || resp.Code != "VENUE_DISABLED" {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}
}

func signToken(t *testing.T, secret string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuthOnMutatingRoutes(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.JWTSecret = "test-secret" })
	client := env.srv.Client()

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong secret", signToken(t, "other", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired", signToken(t, "test-secret", time.Now().Add(-time.Minute)), http.StatusUnauthorized},
		{"valid", signToken(t, "test-secret", time.Now().Add(time.Hour)), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := doJSONRequest(t, client, http.MethodPost, env.srv.URL+"/place_bracket", tt.token, marketBuy(), nil)
			if status != tt.want {
				t.Fatalf("status=%d, expected %d", status, tt.want)
			}
		})
	}

	if status := doJSONRequest(t, client, http.MethodGet, env.srv.URL+"/healthz", "", nil, nil); status != http.StatusOK {
		t.Fatalf("healthz must stay open, got %d", status)
	}
}

func TestRequestLogCarriesTokenSubject(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	env := newTestEnv(t, func(o *Options) {
		o.JWTSecret = "test-secret"
		o.Logger = zap.New(core)
	})
	token := signToken(t, "test-secret", time.Now().Add(time.Hour))
	if status := doJSONRequest(t, env.srv.Client(), http.MethodPost, env.srv.URL+"/place_bracket", token, marketBuy(), nil); status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	if status := doJSONRequest(t, env.srv.Client(), http.MethodGet, env.srv.URL+"/healthz", "", nil, nil); status != http.StatusOK {
		t.Fatalf("healthz status=%d", status)
	}

	// The access log line is written after the response is flushed.
	deadline := time.Now().Add(2 * time.Second)
	for logs.FilterMessage("request").Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := logs.FilterMessage("request").FilterField(zap.String("subject", "ops")).Len(); n != 1 {
		t.Fatalf("request lines with subject=ops: %d, expected 1", n)
	}
	for _, e := range logs.FilterMessage("request").FilterField(zap.String("path", "/healthz")).All() {
		if _, ok := e.ContextMap()["subject"]; ok {
			t.Fatalf("unauthenticated route logged a subject: %v", e.ContextMap())
		}
	}
}

func TestReadiness(t *testing.T) {
	empty := filters.NewValidator(string(exchange.MarketUSDTFut), nil)
	env := newTestEnv(t, func(o *Options) {
		o.Validators = map[exchange.MarketType]*filters.Validator{
			exchange.MarketSpot:    spotValidator(),
			exchange.MarketUSDTFut: empty,
		}
	})

	var resp struct {
		Status  string         `json:"status"`
		Symbols map[string]int `json:"symbols"`
	}
	status := doJSONRequest(t, env.srv.Client(), http.MethodGet, env.srv.URL+"/readyz", "", nil, &resp)
	if status != http.StatusServiceUnavailable || resp.Symbols["SPOT"] != 1 || resp.Symbols["USDT_FUTURES"] != 0 {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}

	empty.Replace([]filters.SymbolFilter{{
		Symbol:  "BTCUSDT",
		Filters: []filters.Filter{filters.PriceFilter{MinPrice: d("0.1"), MaxPrice: d("1000000"), TickSize: d("0.1")}},
	}})
	status = doJSONRequest(t, env.srv.Client(), http.MethodGet, env.srv.URL+"/readyz", "", nil, &resp)
	if status != http.StatusOK || resp.Status != "ready" {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}
}

func TestBracketEventsFromJournal(t *testing.T) {
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	journal := database.Journal()

	const id = "3f2b8c1e-9a4d-4c61-8f0e-2d7b5a9c6e10"
	ctx := context.Background()
	for _, u := range []db.OrderUpdate{
		{BracketOrderID: id, Role: "MAIN", Venue: "SPOT", Symbol: "BTCUSDT", ClientOrderID: "3f2b8c1e9a4d4c61_MAIN_loyw3v28", Status: "NEW", Source: "gateway"},
		{Venue: "SPOT", Symbol: "BTCUSDT", ClientOrderID: "3f2b8c1e9a4d4c61_MAIN_loyw3v28", Status: "FILLED", Source: "exchange"},
		{BracketOrderID: "other", Venue: "SPOT", Symbol: "ETHUSDT", ClientOrderID: "aaaaaaaaaaaaaaaa_MAIN_loyw3v28", Status: "NEW", Source: "gateway"},
	} {
		if _, err := journal.Insert(ctx, u); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	env := newTestEnv(t, func(o *Options) { o.Journal = journal })
	var resp struct {
		Events []journalEntry `json:"events"`
	}
	status := doJSONRequest(t, env.srv.Client(), http.MethodGet, env.srv.URL+"/brackets/"+id+"/events", "", nil, &resp)
	if status != http.StatusOK || len(resp.Events) != 2 || resp.Events[1].Status != "FILLED" {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}

	status = doJSONRequest(t, env.srv.Client(), http.MethodGet, env.srv.URL+"/brackets/7d8e3a52-0000-4000-8000-000000000000/events", "", nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown bracket: status=%d", status)
	}
	status = doJSONRequest(t, env.srv.Client(), http.MethodGet, env.srv.URL+"/brackets/not-a-uuid/events", "", nil, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("bad id: status=%d", status)
	}
}

func TestBracketEventsJournalDisabled(t *testing.T) {
	env := newTestEnv(t, nil)
	var resp errorBody
	status := doJSONRequest(t, env.srv.Client(), http.MethodGet, env.srv.URL+"/brackets/3f2b8c1e-9a4d-4c61-8f0e-2d7b5a9c6e10/events", "", nil, &resp)
	if status != http.StatusNotFound || resp.Code != "JOURNAL_DISABLED" {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.RateLimitRPS = 0.001
		o.RateLimitBurst = 1
	})
	client := env.srv.Client()
	if status := doJSONRequest(t, client, http.MethodGet, env.srv.URL+"/healthz", "", nil, nil); status != http.StatusOK {
		t.Fatalf("first request: %d", status)
	}
	if status := doJSONRequest(t, client, http.MethodGet, env.srv.URL+"/healthz", "", nil, nil); status != http.StatusTooManyRequests {
		t.Fatalf("second request: %d, expected 429", status)
	}
}

func TestMetricsAndStats(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.srv.Client()
	doJSONRequest(t, client, http.MethodPost, env.srv.URL+"/place_bracket", "", marketBuy(), nil)

	resp, err := client.Get(env.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		`gateway_brackets_total{result="ok",venue="SPOT"} 1`,
		`gateway_http_requests_total{code="200",method="POST",route="/place_bracket"} 1`,
	} {
		if !strings.Contains(body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	var stats struct {
		Meta    SystemMeta       `json:"meta"`
		Metrics monitor.Snapshot `json:"metrics"`
	}
	if status := doJSONRequest(t, client, http.MethodGet, env.srv.URL+"/stats", "", nil, &stats); status != http.StatusOK {
		t.Fatalf("stats status=%d", status)
	}
	if !stats.Meta.DryRun || stats.Metrics.BracketsPlaced != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestWebsocketStreamsOrderUpdates(t *testing.T) {
	env := newTestEnv(t, nil)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws?bracket_order_id=wanted"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.bus.Subscribers(events.EventOrderUpdate) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket did not subscribe")
		}
		time.Sleep(time.Millisecond)
	}

	env.bus.Publish(events.EventOrderUpdate, events.OrderUpdate{BracketOrderID: "other", ClientOrderID: "a"})
	env.bus.Publish(events.EventOrderUpdate, events.OrderUpdate{BracketOrderID: "wanted", ClientOrderID: "b", Status: "NEW"})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got events.OrderUpdate
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.ClientOrderID != "b" || got.Status != "NEW" {
		t.Fatalf("unexpected update %+v", got)
	}
}
