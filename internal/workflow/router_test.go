package workflow

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/skyflexible-prog/deltamulti-modular/internal/config"
	"github.com/skyflexible-prog/deltamulti-modular/internal/delta"
	"github.com/skyflexible-prog/deltamulti-modular/internal/session"
	"github.com/skyflexible-prog/deltamulti-modular/internal/telegram"
)

type chatMessage struct {
	chatID int64
	text   string
	kb     *telegram.InlineKeyboardMarkup
}

// fakeMessenger records everything the router tries to show the user.
type fakeMessenger struct {
	mu       sync.Mutex
	sent     []chatMessage
	edits    []chatMessage
	answered []string
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, chatMessage{chatID: chatID, text: text, kb: kb})
	return &telegram.Message{MessageID: int64(len(f.sent)), Chat: telegram.Chat{ID: chatID}}, nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, chatID, messageID int64, text string, kb *telegram.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, chatMessage{chatID: chatID, text: text, kb: kb})
	return nil
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeMessenger) lastEdit(t *testing.T) chatMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		t.Fatalf("no message edits recorded")
	}
	return f.edits[len(f.edits)-1]
}

func (f *fakeMessenger) lastSent(t *testing.T) chatMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("no messages sent")
	}
	return f.sent[len(f.sent)-1]
}

// exchangeStub serves the REST surface the workflows touch, with canned
// market data and an order capture.
type exchangeStub struct {
	mu          sync.Mutex
	nextOrderID int64
	orders      []map[string]any
	failProduct int64 // orders for this product id are rejected
	cancelled   []string
}

func newExchangeStub() *exchangeStub {
	return &exchangeStub{nextOrderID: 5000}
}

const stubProducts = `{"success":true,"result":[
  {"id":101,"symbol":"C-BTC-95000-250926","contract_type":"call_options","strike_price":"95000","settlement_time":"2026-09-25T12:00:00Z","state":"live"},
  {"id":201,"symbol":"P-BTC-95000-250926","contract_type":"put_options","strike_price":"95000","settlement_time":"2026-09-25T12:00:00Z","state":"live"},
  {"id":102,"symbol":"C-BTC-97000-250926","contract_type":"call_options","strike_price":"97000","settlement_time":"2026-09-25T12:00:00Z","state":"live"},
  {"id":202,"symbol":"P-BTC-97000-250926","contract_type":"put_options","strike_price":"97000","settlement_time":"2026-09-25T12:00:00Z","state":"live"}
]}`

const stubTickers = `{"success":true,"result":[
  {"symbol":"C-BTC-95000-250926","product_id":101,"contract_type":"call_options","strike_price":"95000","mark_price":"1200.5","quotes":{"best_bid":"1195","best_ask":"1205"}},
  {"symbol":"P-BTC-95000-250926","product_id":201,"contract_type":"put_options","strike_price":"95000","mark_price":"1100.25","quotes":{"best_bid":"1095","best_ask":"1105"}},
  {"symbol":"C-BTC-97000-250926","product_id":102,"contract_type":"call_options","strike_price":"97000","mark_price":"600","quotes":{"best_bid":"595","best_ask":"605"}},
  {"symbol":"P-BTC-97000-250926","product_id":202,"contract_type":"put_options","strike_price":"97000","mark_price":"2100","quotes":{"best_bid":"2095","best_ask":"2105"}}
]}`

const stubPositions = `{"success":true,"result":[
  {"product_id":101,"product":{"id":101,"symbol":"C-BTC-95000-250926"},"size":3,"entry_price":"1200","mark_price":"1250","unrealized_profit_loss":"150"},
  {"product_id":201,"product":{"id":201,"symbol":"P-BTC-95000-250926"},"size":-1,"entry_price":"800","mark_price":"780","unrealized_profit_loss":"20"}
]}`

func (s *exchangeStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v2/wallet/balances":
			io.WriteString(w, `{"success":true,"result":[{"asset_symbol":"USD","balance":"15000","available_balance":"12500","order_margin":"1500","position_margin":"1000","unrealized_pnl":"250.5"}]}`)
		case r.URL.Path == "/v2/tickers/BTCUSD":
			io.WriteString(w, `{"success":true,"result":{"symbol":"BTCUSD","spot_price":"95120"}}`)
		case r.URL.Path == "/v2/tickers":
			io.WriteString(w, stubTickers)
		case r.URL.Path == "/v2/products":
			io.WriteString(w, stubProducts)
		case r.URL.Path == "/v2/positions":
			io.WriteString(w, stubPositions)
		case r.URL.Path == "/v2/orders" && r.Method == http.MethodGet:
			switch r.URL.Query().Get("state") {
			case "open":
				io.WriteString(w, `{"success":true,"result":[{"id":9001,"product_id":101,"product":{"symbol":"C-BTC-95000-250926"},"side":"sell","size":2,"order_type":"limit_order","limit_price":"1300","state":"open"}]}`)
			case "pending":
				io.WriteString(w, `{"success":true,"result":[{"id":9002,"product_id":201,"product":{"symbol":"P-BTC-95000-250926"},"side":"buy","size":1,"order_type":"limit_order","limit_price":"896","stop_order_type":"stop_loss_order","stop_price":"880","state":"pending"}]}`)
			default:
				io.WriteString(w, `{"success":true,"result":[]}`)
			}
		case r.URL.Path == "/v2/orders" && r.Method == http.MethodPost:
			b, _ := io.ReadAll(r.Body)
			var body map[string]any
			if err := json.Unmarshal(b, &body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"success":false,"error":{"code":"bad_payload"}}`)
				return
			}
			pid := int64(body["product_id"].(float64))

			s.mu.Lock()
			if s.failProduct != 0 && pid == s.failProduct {
				s.mu.Unlock()
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"success":false,"error":{"code":"insufficient_margin"}}`)
				return
			}
			s.orders = append(s.orders, body)
			s.nextOrderID++
			id := s.nextOrderID
			s.mu.Unlock()

			fmt.Fprintf(w, `{"success":true,"result":{"id":%d,"product_id":%d,"side":%q,"size":%d,"state":"open"}}`,
				id, pid, body["side"].(string), int(body["size"].(float64)))
		case r.URL.Path == "/v2/orders/all" && r.Method == http.MethodDelete:
			s.mu.Lock()
			s.cancelled = append(s.cancelled, "all")
			s.mu.Unlock()
			io.WriteString(w, `{"success":true,"result":{}}`)
		case strings.HasPrefix(r.URL.Path, "/v2/orders/") && r.Method == http.MethodDelete:
			s.mu.Lock()
			s.cancelled = append(s.cancelled, strings.TrimPrefix(r.URL.Path, "/v2/orders/"))
			s.mu.Unlock()
			io.WriteString(w, `{"success":true,"result":{}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"success":false,"error":{"code":"not_found"}}`)
		}
	}
}

func (s *exchangeStub) placedOrders() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.orders...)
}

func testRouter(t *testing.T, stub *exchangeStub) (*Router, *fakeMessenger) {
	t.Helper()
	ts := httptest.NewServer(stub.handler())
	t.Cleanup(ts.Close)

	ex := delta.NewExchange(delta.Config{
		BaseURL:            ts.URL,
		MinRequestInterval: time.Millisecond,
		MaxAttempts:        1,
	}, zerolog.Nop())

	tg := &fakeMessenger{}
	r := New(Deps{
		Accounts: config.NewRegistry(
			config.Account{Index: 1, Name: "Main", Description: "primary book", APIKey: "key-1", APISecret: "secret-1"},
			config.Account{Index: 3, Name: "Hedge", APIKey: "key-3", APISecret: "secret-3"},
		),
		Store:    session.NewStore(),
		Exchange: ex,
		Telegram: tg,
		Log:      zerolog.Nop(),
	})
	return r, tg
}

func callbackUpdate(userID int64, data string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		CallbackQuery: &telegram.CallbackQuery{
			ID:      "cb-1",
			From:    telegram.User{ID: userID},
			Message: &telegram.Message{MessageID: 42, Chat: telegram.Chat{ID: userID}},
			Data:    data,
		},
	}
}

func textUpdate(userID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: 2,
		Message: &telegram.Message{
			MessageID: 43,
			From:      &telegram.User{ID: userID, FirstName: "Ada"},
			Chat:      telegram.Chat{ID: userID},
			Text:      text,
		},
	}
}

// bindAccount seeds a session as if the user had already picked an account.
func bindAccount(r *Router, userID int64) *session.Session {
	sess := r.store.Get(userID)
	sess.SetAccount(session.Account{Index: 1, Name: "Main", APIKey: "key-1", APISecret: "secret-1"})
	return sess
}

func TestStartListsAccounts(t *testing.T) {
	r, tg := testRouter(t, newExchangeStub())

	r.HandleUpdate(context.Background(), textUpdate(7, "/start"))

	msg := tg.lastSent(t)
	if !strings.Contains(msg.text, "Welcome to Delta Exchange Trading Bot") {
		t.Fatalf("welcome text missing in %q", msg.text)
	}
	if !strings.Contains(msg.text, "Ada") {
		t.Fatalf("first name missing in %q", msg.text)
	}
	if msg.kb == nil || len(msg.kb.InlineKeyboard) != 2 {
		t.Fatalf("expected 2 account rows, got %+v", msg.kb)
	}
	if got, want := msg.kb.InlineKeyboard[0][0].CallbackData, "select_account:1"; got != want {
		t.Fatalf("first account callback mismatch: got %q want %q", got, want)
	}
	if got, want := msg.kb.InlineKeyboard[1][0].CallbackData, "select_account:3"; got != want {
		t.Fatalf("second account callback mismatch: got %q want %q", got, want)
	}
}

func TestCallbackWithoutAccountIsRejected(t *testing.T) {
	r, tg := testRouter(t, newExchangeStub())

	r.HandleUpdate(context.Background(), callbackUpdate(7, "main_menu"))

	if got, want := tg.lastEdit(t).text, noAccountText; got != want {
		t.Fatalf("guard text mismatch: got %q want %q", got, want)
	}
	if len(tg.answered) != 1 || tg.answered[0] != "cb-1" {
		t.Fatalf("callback not answered: %v", tg.answered)
	}
}

func TestSelectAccountShowsSummary(t *testing.T) {
	r, tg := testRouter(t, newExchangeStub())

	r.HandleUpdate(context.Background(), callbackUpdate(7, "select_account:1"))

	edit := tg.lastEdit(t)
	for _, want := range []string{
		"💰 <b>Main</b>",
		"Available: 12,500.00",
		"Margin Used: 2,500.00",
		"Total Equity: 15,000.00",
		"Unrealized PnL: ✅ +250.50",
		"Main Menu",
	} {
		if !strings.Contains(edit.text, want) {
			t.Fatalf("summary missing %q in:\n%s", want, edit.text)
		}
	}
	if edit.kb == nil || len(edit.kb.InlineKeyboard) != 9 {
		t.Fatalf("expected main menu keyboard, got %+v", edit.kb)
	}

	sess := r.store.Get(7)
	if sess.Account == nil || sess.Account.Name != "Main" {
		t.Fatalf("account not bound: %+v", sess.Account)
	}
}

func TestSelectAccountInvalidSlot(t *testing.T) {
	r, tg := testRouter(t, newExchangeStub())

	r.HandleUpdate(context.Background(), callbackUpdate(7, "select_account:2"))

	if got := tg.lastEdit(t).text; !strings.Contains(got, "Invalid account selection") {
		t.Fatalf("expected invalid-selection notice, got %q", got)
	}
}

func TestStraddleFlowExecutesBothLegs(t *testing.T) {
	stub := newExchangeStub()
	r, tg := testRouter(t, stub)
	ctx := context.Background()
	bindAccount(r, 7)

	expiry := time.Date(2026, time.September, 25, 12, 0, 0, 0, time.UTC)

	r.HandleUpdate(ctx, callbackUpdate(7, "expiry_selection"))
	if got := tg.lastEdit(t).text; !strings.Contains(got, "Select Underlying Asset") {
		t.Fatalf("asset prompt missing, got %q", got)
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "select_asset:BTCUSD"))
	edit := tg.lastEdit(t)
	if !strings.Contains(edit.text, "Select Expiry for BTCUSD") {
		t.Fatalf("expiry prompt missing, got %q", edit.text)
	}
	wantData := fmt.Sprintf("select_expiry:BTCUSD:%d", expiry.Unix())
	if got := edit.kb.InlineKeyboard[0][0].CallbackData; got != wantData {
		t.Fatalf("expiry callback mismatch: got %q want %q", got, wantData)
	}

	r.HandleUpdate(ctx, callbackUpdate(7, wantData))
	edit = tg.lastEdit(t)
	for _, want := range []string{
		"ATM Straddle Details",
		"<b>ATM Strike:</b> 95,000.00",
		"Symbol: C-BTC-95000-250926",
		"Symbol: P-BTC-95000-250926",
		"Select Lot Size",
	} {
		if !strings.Contains(edit.text, want) {
			t.Fatalf("straddle details missing %q in:\n%s", want, edit.text)
		}
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "select_lot:2"))
	if got := tg.lastEdit(t).text; !strings.Contains(got, "Select Trade Direction") {
		t.Fatalf("direction prompt missing, got %q", got)
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "trade_direction:long"))
	edit = tg.lastEdit(t)
	for _, want := range []string{
		"Confirm Trade Execution",
		"<b>Strategy:</b> LONG Straddle",
		"<b>Lot Size:</b> 2",
		"<b>Total Est. Cost:</b> 4,601.50",
		"This will BUY both options",
	} {
		if !strings.Contains(edit.text, want) {
			t.Fatalf("confirmation missing %q in:\n%s", want, edit.text)
		}
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "confirm_trade"))
	edit = tg.lastEdit(t)
	if !strings.Contains(edit.text, "Trade Executed Successfully") {
		t.Fatalf("execution summary missing, got:\n%s", edit.text)
	}
	if !strings.Contains(edit.text, "Order ID: 5001") || !strings.Contains(edit.text, "Order ID: 5002") {
		t.Fatalf("order ids missing in:\n%s", edit.text)
	}

	orders := stub.placedOrders()
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if got, want := orders[0]["product_id"], float64(101); got != want {
		t.Fatalf("call leg product mismatch: got %v want %v", got, want)
	}
	if got, want := orders[1]["product_id"], float64(201); got != want {
		t.Fatalf("put leg product mismatch: got %v want %v", got, want)
	}
	for i, o := range orders {
		if got, want := o["side"], "buy"; got != want {
			t.Fatalf("order %d side mismatch: got %v want %v", i, got, want)
		}
		if got, want := o["size"], float64(2); got != want {
			t.Fatalf("order %d size mismatch: got %v want %v", i, got, want)
		}
		if got, want := o["order_type"], "market_order"; got != want {
			t.Fatalf("order %d type mismatch: got %v want %v", i, got, want)
		}
	}

	if sess := r.store.Get(7); sess.Straddle != nil {
		t.Fatalf("straddle draft not cleared after execution")
	}
}

func TestStraddlePartialExecutionWarns(t *testing.T) {
	stub := newExchangeStub()
	stub.failProduct = 201
	r, tg := testRouter(t, stub)
	ctx := context.Background()

	sess := bindAccount(r, 7)
	sess.Straddle = &session.StraddleDraft{
		Asset:         delta.AssetBTC,
		CallProductID: 101,
		PutProductID:  201,
		LotSize:       2,
		Direction:     session.DirectionLong,
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "confirm_trade"))

	edit := tg.lastEdit(t)
	for _, want := range []string{
		"Partial Execution",
		"Order ID: 5001",
		"insufficient_margin",
		"remains live",
	} {
		if !strings.Contains(edit.text, want) {
			t.Fatalf("partial warning missing %q in:\n%s", want, edit.text)
		}
	}
	if got := len(stub.placedOrders()); got != 1 {
		t.Fatalf("expected only the call leg captured, got %d orders", got)
	}
}

func TestCustomLotInput(t *testing.T) {
	r, tg := testRouter(t, newExchangeStub())
	ctx := context.Background()

	sess := bindAccount(r, 7)
	sess.Straddle = &session.StraddleDraft{Asset: delta.AssetBTC, CallProductID: 101, PutProductID: 201}
	sess.State = session.AwaitingCustomLot{}

	r.HandleUpdate(ctx, textUpdate(7, "abc"))
	if got := tg.lastSent(t).text; !strings.Contains(got, "Lot size must be a whole number") {
		t.Fatalf("validation notice missing, got %q", got)
	}
	if _, ok := sess.State.(session.AwaitingCustomLot); !ok {
		t.Fatalf("state lost after invalid input: %T", sess.State)
	}

	r.HandleUpdate(ctx, textUpdate(7, " 3 "))
	if got := tg.lastSent(t).text; !strings.Contains(got, "Select Trade Direction") {
		t.Fatalf("direction prompt missing, got %q", got)
	}
	if got, want := sess.Straddle.LotSize, 3; got != want {
		t.Fatalf("lot size mismatch: got %d want %d", got, want)
	}
	if sess.State != nil {
		t.Fatalf("state not cleared: %T", sess.State)
	}
}

func TestStopLossPercentageFlow(t *testing.T) {
	stub := newExchangeStub()
	r, tg := testRouter(t, stub)
	ctx := context.Background()
	bindAccount(r, 7)

	r.HandleUpdate(ctx, callbackUpdate(7, "set_stoploss"))
	edit := tg.lastEdit(t)
	if !strings.Contains(edit.text, "Select a position to protect") {
		t.Fatalf("position list missing, got %q", edit.text)
	}
	if got, want := edit.kb.InlineKeyboard[0][0].CallbackData, "sl_position:101:3:1200"; got != want {
		t.Fatalf("position callback mismatch: got %q want %q", got, want)
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "sl_position:101:3:1200"))
	if got := tg.lastEdit(t).text; !strings.Contains(got, "Select input method") {
		t.Fatalf("method prompt missing, got %q", got)
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "sl_method:percentage"))
	if got := tg.lastEdit(t).text; !strings.Contains(got, "Trigger Percentage") {
		t.Fatalf("trigger prompt missing, got %q", got)
	}

	r.HandleUpdate(ctx, textUpdate(7, "5"))
	if got := tg.lastSent(t).text; !strings.Contains(got, "Limit Percentage") {
		t.Fatalf("limit prompt missing, got %q", got)
	}

	r.HandleUpdate(ctx, textUpdate(7, "6"))
	sent := tg.lastSent(t)
	for _, want := range []string{
		"Confirm Stop-Loss Order",
		"5.00% (1,140.00)",
		"6.00% (1,128.00)",
	} {
		if !strings.Contains(sent.text, want) {
			t.Fatalf("confirmation missing %q in:\n%s", want, sent.text)
		}
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "confirm_sl"))
	if got := tg.lastEdit(t).text; !strings.Contains(got, "Stop-Loss Order Placed!") {
		t.Fatalf("placed summary missing, got:\n%s", got)
	}

	orders := stub.placedOrders()
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if got, want := o["stop_order_type"], "stop_loss_order"; got != want {
		t.Fatalf("stop type mismatch: got %v want %v", got, want)
	}
	if got, want := o["stop_price"], "1140"; got != want {
		t.Fatalf("stop price mismatch: got %v want %v", got, want)
	}
	if got, want := o["limit_price"], "1128"; got != want {
		t.Fatalf("limit price mismatch: got %v want %v", got, want)
	}
	if got, want := o["side"], "sell"; got != want {
		t.Fatalf("side mismatch: got %v want %v", got, want)
	}
	if got, want := o["reduce_only"], true; got != want {
		t.Fatalf("reduce_only mismatch: got %v want %v", got, want)
	}
	if got, want := o["size"], float64(3); got != want {
		t.Fatalf("size mismatch: got %v want %v", got, want)
	}
}

func TestStopLossRejectsOutOfRangePercent(t *testing.T) {
	r, tg := testRouter(t, newExchangeStub())
	ctx := context.Background()
	bindAccount(r, 7)

	r.HandleUpdate(ctx, callbackUpdate(7, "set_stoploss"))
	r.HandleUpdate(ctx, callbackUpdate(7, "sl_position:101:3:1200"))
	r.HandleUpdate(ctx, callbackUpdate(7, "sl_method:percentage"))

	r.HandleUpdate(ctx, textUpdate(7, "150"))
	if got := tg.lastSent(t).text; !strings.Contains(got, "at most 100") {
		t.Fatalf("rejection notice missing, got %q", got)
	}
	sess := r.store.Get(7)
	if _, ok := sess.State.(session.AwaitingStopTriggerPct); !ok {
		t.Fatalf("state advanced after invalid input: %T", sess.State)
	}

	r.HandleUpdate(ctx, textUpdate(7, "5"))
	if got := tg.lastSent(t).text; !strings.Contains(got, "Limit Percentage") {
		t.Fatalf("limit prompt missing after retry, got %q", got)
	}
}

func TestTargetNumeralFlow(t *testing.T) {
	stub := newExchangeStub()
	r, tg := testRouter(t, stub)
	ctx := context.Background()
	bindAccount(r, 7)

	r.HandleUpdate(ctx, callbackUpdate(7, "set_target"))
	r.HandleUpdate(ctx, callbackUpdate(7, "target_position:201:-1:800"))
	r.HandleUpdate(ctx, callbackUpdate(7, "target_method:numeral"))
	if got := tg.lastEdit(t).text; !strings.Contains(got, "Trigger Price") {
		t.Fatalf("trigger prompt missing, got %q", got)
	}

	r.HandleUpdate(ctx, textUpdate(7, "700"))
	if got := tg.lastSent(t).text; !strings.Contains(got, "Limit Price") {
		t.Fatalf("limit prompt missing, got %q", got)
	}

	r.HandleUpdate(ctx, textUpdate(7, "710"))
	if got := tg.lastSent(t).text; !strings.Contains(got, "Confirm Target Order") {
		t.Fatalf("confirmation missing, got %q", got)
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "confirm_target"))
	if got := tg.lastEdit(t).text; !strings.Contains(got, "Target Order Placed!") {
		t.Fatalf("placed summary missing, got:\n%s", got)
	}

	orders := stub.placedOrders()
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if got, want := o["stop_order_type"], "take_profit_order"; got != want {
		t.Fatalf("stop type mismatch: got %v want %v", got, want)
	}
	if got, want := o["stop_price"], "700"; got != want {
		t.Fatalf("stop price mismatch: got %v want %v", got, want)
	}
	if got, want := o["limit_price"], "710"; got != want {
		t.Fatalf("limit price mismatch: got %v want %v", got, want)
	}
	if got, want := o["side"], "buy"; got != want {
		t.Fatalf("short positions close with buys: got %v want %v", got, want)
	}
}

func TestMultiStopLossFlow(t *testing.T) {
	stub := newExchangeStub()
	r, tg := testRouter(t, stub)
	ctx := context.Background()
	bindAccount(r, 7)

	r.HandleUpdate(ctx, callbackUpdate(7, "multi_stoploss"))
	edit := tg.lastEdit(t)
	if !strings.Contains(edit.text, "Multi-Strike Stop-Loss") {
		t.Fatalf("selection screen missing, got %q", edit.text)
	}
	if got, want := edit.kb.InlineKeyboard[0][0].CallbackData, "multi_sl_toggle:101"; got != want {
		t.Fatalf("toggle callback mismatch: got %q want %q", got, want)
	}

	// Done with nothing selected keeps the user on the list.
	r.HandleUpdate(ctx, callbackUpdate(7, "multi_sl_done"))
	if got := tg.lastEdit(t).text; !strings.Contains(got, "Select at least one position") {
		t.Fatalf("empty-selection notice missing, got %q", got)
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "multi_sl_toggle:101"))
	if got := tg.lastEdit(t).text; !strings.Contains(got, "<b>Selected:</b> 1 of 2") {
		t.Fatalf("selection count missing, got %q", got)
	}
	r.HandleUpdate(ctx, callbackUpdate(7, "multi_sl_toggle:201"))
	r.HandleUpdate(ctx, callbackUpdate(7, "multi_sl_done"))
	if got := tg.lastEdit(t).text; !strings.Contains(got, "2 positions selected") {
		t.Fatalf("trigger prompt missing, got %q", got)
	}

	r.HandleUpdate(ctx, textUpdate(7, "10"))
	r.HandleUpdate(ctx, textUpdate(7, "12"))
	sent := tg.lastSent(t)
	for _, want := range []string{
		"Confirm Multi-Strike Stop-Loss",
		"C-BTC-95000-250926",
		"P-BTC-95000-250926",
		"Trigger: 1,080.00 | Limit: 1,056.00",
		"Trigger: 880.00 | Limit: 896.00",
		"Place 2 orders?",
	} {
		if !strings.Contains(sent.text, want) {
			t.Fatalf("batch confirmation missing %q in:\n%s", want, sent.text)
		}
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "confirm_multi_sl"))
	edit = tg.lastEdit(t)
	if !strings.Contains(edit.text, "2 of 2 orders placed") {
		t.Fatalf("batch summary missing, got:\n%s", edit.text)
	}

	orders := stub.placedOrders()
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	// Long leg protects with a sell below entry; short leg with a buy above.
	if got, want := orders[0]["stop_price"], "1080"; got != want {
		t.Fatalf("long leg stop mismatch: got %v want %v", got, want)
	}
	if got, want := orders[0]["side"], "sell"; got != want {
		t.Fatalf("long leg side mismatch: got %v want %v", got, want)
	}
	if got, want := orders[1]["stop_price"], "880"; got != want {
		t.Fatalf("short leg stop mismatch: got %v want %v", got, want)
	}
	if got, want := orders[1]["side"], "buy"; got != want {
		t.Fatalf("short leg side mismatch: got %v want %v", got, want)
	}
	if got, want := orders[1]["size"], float64(1); got != want {
		t.Fatalf("short leg size mismatch: got %v want %v", got, want)
	}
}

func TestShowPositionsTotalsPnL(t *testing.T) {
	r, tg := testRouter(t, newExchangeStub())
	bindAccount(r, 7)

	r.HandleUpdate(context.Background(), callbackUpdate(7, "show_positions"))

	edit := tg.lastEdit(t)
	for _, want := range []string{
		"Open Positions",
		"<b>Position 1:</b>",
		"<b>Position 2:</b>",
		"Side: LONG | Size: 3",
		"Side: SHORT | Size: 1",
		"<b>Total Unrealized PnL:</b> ✅ +170.00",
	} {
		if !strings.Contains(edit.text, want) {
			t.Fatalf("positions view missing %q in:\n%s", want, edit.text)
		}
	}
	// Marks come from the ticker snapshot, not the stale position payload.
	if !strings.Contains(edit.text, "Entry: 1,200.00 | Mark: 1,200.50") {
		t.Fatalf("ticker mark not applied in:\n%s", edit.text)
	}
}

func TestShowOrdersAndCancelAll(t *testing.T) {
	stub := newExchangeStub()
	r, tg := testRouter(t, stub)
	ctx := context.Background()
	bindAccount(r, 7)

	r.HandleUpdate(ctx, callbackUpdate(7, "show_orders"))
	edit := tg.lastEdit(t)
	for _, want := range []string{
		"Your Orders",
		"Open Orders (1)",
		"Pending Stop Orders (1)",
		"Order ID: 9001",
		"Order ID: 9002",
		"Stop Type: stop_loss_order",
	} {
		if !strings.Contains(edit.text, want) {
			t.Fatalf("orders view missing %q in:\n%s", want, edit.text)
		}
	}
	if got, want := edit.kb.InlineKeyboard[0][0].CallbackData, "cancel_order:9001"; got != want {
		t.Fatalf("cancel callback mismatch: got %q want %q", got, want)
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "cancel_order:9001"))
	if got := tg.lastEdit(t).text; !strings.Contains(got, "Order Cancelled") {
		t.Fatalf("cancel summary missing, got %q", got)
	}

	r.HandleUpdate(ctx, callbackUpdate(7, "cancel_all_orders"))
	if got := tg.lastEdit(t).text; !strings.Contains(got, "All Orders Cancelled") {
		t.Fatalf("cancel-all summary missing, got %q", got)
	}

	stub.mu.Lock()
	cancelled := append([]string(nil), stub.cancelled...)
	stub.mu.Unlock()
	if len(cancelled) != 2 || cancelled[0] != "9001" || cancelled[1] != "all" {
		t.Fatalf("cancel calls mismatch: %v", cancelled)
	}
}

func TestMainMenuResetsWorkflows(t *testing.T) {
	r, tg := testRouter(t, newExchangeStub())
	sess := bindAccount(r, 7)
	sess.Straddle = &session.StraddleDraft{Asset: delta.AssetBTC}
	sess.State = session.AwaitingCustomLot{}

	r.HandleUpdate(context.Background(), callbackUpdate(7, "main_menu"))

	if sess.Straddle != nil || sess.State != nil {
		t.Fatalf("workflow state not reset: draft=%+v state=%T", sess.Straddle, sess.State)
	}
	if got := tg.lastEdit(t).text; !strings.Contains(got, "Main Menu") {
		t.Fatalf("menu text missing, got %q", got)
	}
}

func TestStrayTextIsDropped(t *testing.T) {
	r, tg := testRouter(t, newExchangeStub())
	bindAccount(r, 7)

	r.HandleUpdate(context.Background(), textUpdate(7, "hello there"))

	tg.mu.Lock()
	defer tg.mu.Unlock()
	if len(tg.sent) != 0 || len(tg.edits) != 0 {
		t.Fatalf("idle text produced output: sent=%d edits=%d", len(tg.sent), len(tg.edits))
	}
}
