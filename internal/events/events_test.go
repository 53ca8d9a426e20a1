package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/SubhajL/online-trading-sub002/pkg/db"
)

func sampleUpdate() OrderUpdate {
	return Stamp(OrderUpdate{
		BracketOrderID: "b-1",
		Role:           "TP_1",
		Venue:          "SPOT",
		Symbol:         "BTCUSDT",
		OrderID:        "42",
		ClientOrderID:  "abc_TP1_xyz",
		Status:         "NEW",
		Side:           "SELL",
		OrderType:      "LIMIT",
		Price:          decimal.RequireFromString("66000.10"),
		Quantity:       decimal.RequireFromString("0.0005"),
	}, SourceGateway)
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventOrderUpdate, 1)
	defer unsub()

	bus.Publish(EventOrderUpdate, 1)
	bus.Publish(EventOrderUpdate, 2)

	if got := <-ch; got != 1 {
		t.Fatalf("got %v, expected 1", got)
	}
	if bus.Dropped() != 1 {
		t.Fatalf("Dropped=%d, expected 1", bus.Dropped())
	}

	unsub()
	unsub()
	if bus.Subscribers(EventOrderUpdate) != 0 {
		t.Fatalf("subscriber not removed")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed after unsubscribe")
	}
}

func TestStamp(t *testing.T) {
	u := sampleUpdate()
	if u.EventType != "order_update.v1" || u.Source != SourceGateway || u.UpdateTime == 0 {
		t.Fatalf("unexpected envelope %+v", u)
	}
	raw, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"price":"66000.1"`) {
		t.Fatalf("price not encoded as exact string: %s", raw)
	}
}

func TestMultiSinkPublishesToAll(t *testing.T) {
	var calls int
	failing := SinkFunc(func(context.Context, OrderUpdate) error { calls++; return errors.New("down") })
	ok := SinkFunc(func(context.Context, OrderUpdate) error { calls++; return nil })

	err := MultiSink{failing, ok, failing}.Publish(context.Background(), sampleUpdate())
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("err=%v, expected combined error", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d, expected 3", calls)
	}
}

func TestBusSink(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventOrderUpdate, 4)
	defer unsub()

	if err := (BusSink{Bus: bus}).Publish(context.Background(), sampleUpdate()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got, ok := (<-ch).(OrderUpdate)
	if !ok || got.ClientOrderID != "abc_TP1_xyz" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestWebhookSink(t *testing.T) {
	var received OrderUpdate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Event-Type") != EventTypeOrderUpdate {
			t.Errorf("event header=%q", r.Header.Get("X-Event-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewWebhookSink(srv.URL, 0).Publish(context.Background(), sampleUpdate()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if received.Role != "TP_1" || !received.Price.Equal(decimal.RequireFromString("66000.1")) {
		t.Fatalf("unexpected body %+v", received)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	if err := NewWebhookSink(failing.URL, 0).Publish(context.Background(), sampleUpdate()); err == nil {
		t.Fatalf("expected error on 500")
	}
}

func TestJournalSink(t *testing.T) {
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	sink := JournalSink{Journal: database.Journal()}
	if err := sink.Publish(context.Background(), sampleUpdate()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	rows, err := database.Journal().ListByBracket(context.Background(), "b-1", "")
	if err != nil {
		t.Fatalf("ListByBracket: %v", err)
	}
	if len(rows) != 1 || rows[0].Price != "66000.1" || rows[0].Source != SourceGateway {
		t.Fatalf("unexpected rows %+v", rows)
	}
}
