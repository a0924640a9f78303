package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/phillip/levy-collector-go/models"
	"github.com/phillip/levy-collector-go/store"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// signalFeed reports when the pump has subscribed.
type signalFeed struct {
	Feed
	subscribed chan struct{}
	once       sync.Once
}

func (s *signalFeed) Watch(ctx context.Context) (<-chan store.ChangeEvent, error) {
	ch, err := s.Feed.Watch(ctx)
	s.once.Do(func() { close(s.subscribed) })
	return ch, err
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func TestStreamDeliversFeedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := store.NewMemory()
	hub := NewHub(nil, nil)
	go hub.Run(ctx)
	feed := &signalFeed{Feed: mem, subscribed: make(chan struct{})}
	pump := &Pump{Feed: feed, Hub: hub, Retry: 10 * time.Millisecond}
	go pump.Run(ctx)
	<-feed.subscribed

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeWS(w, r, r.URL.Query().Get("collector")); err != nil {
			t.Errorf("serve: %v", err)
		}
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	admin, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer admin.Close()
	bola, _, err := websocket.DefaultDialer.Dial(wsURL+"?collector=bola@example.com", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer bola.Close()
	waitFor(t, func() bool { return hub.Clients() == 2 })

	insert := func(name, collector string) {
		err := mem.InsertTransaction(context.Background(), &models.Transaction{
			PayerName: name, PayerPhone: "0800", Amount: decimal.NewFromInt(100),
			PaymentType: models.PaymentOther, Collector: collector,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	insert("Ada", "ada@example.com")
	insert("Chidi", "bola@example.com")

	first := readMessage(t, admin)
	if first.Type != "INSERT" || first.Payload.Record.PayerName != "Ada" {
		t.Fatalf("admin first message %+v", first)
	}
	if second := readMessage(t, admin); second.Payload.Record.PayerName != "Chidi" {
		t.Fatalf("admin second message %+v", second)
	}

	// bola's stream skips ada's record
	if msg := readMessage(t, bola); msg.Payload.Record.PayerName != "Chidi" {
		t.Fatalf("bola message %+v", msg)
	}
}

func TestHubDisconnectsClientsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil, nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "")
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 1 })

	cancel()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to close")
	}
	waitFor(t, func() bool { return !hub.Broadcast(store.ChangeEvent{}) })
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestPublisherKeysByTransactionID(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(KafkaConfig{Enabled: true, Topic: "transactions"}, w, nil, nil)
	p.Start(context.Background())

	ev := store.ChangeEvent{Type: store.ChangeInsert, Record: models.Transaction{ID: "tx-1", PayerName: "Ada"}}
	if err := p.Publish(ev); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}

	if !w.closed || len(w.msgs) != 1 {
		t.Fatalf("writer state closed=%v msgs=%d", w.closed, len(w.msgs))
	}
	if string(w.msgs[0].Key) != "tx-1" || !strings.Contains(string(w.msgs[0].Value), `"payer_name":"Ada"`) {
		t.Fatalf("message %s / %s", w.msgs[0].Key, w.msgs[0].Value)
	}
}

func TestDisabledPublisherIsNoop(t *testing.T) {
	p, err := NewPublisher(KafkaConfig{}, nil, nil)
	if err != nil || p != nil {
		t.Fatalf("expected nil publisher, got %v %v", p, err)
	}
	p.Start(context.Background())
	if err := p.Publish(store.ChangeEvent{}); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestNewPublisherValidates(t *testing.T) {
	if _, err := NewPublisher(KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}}, nil, nil); err == nil {
		t.Fatal("expected topic error")
	}
	if _, err := NewPublisher(KafkaConfig{Enabled: true, Topic: "t"}, nil, nil); err == nil {
		t.Fatal("expected broker error")
	}
}
