package handlers

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/internal/models"
	"github.com/DDH2004/AIoTHackStorm/internal/services"
	"github.com/DDH2004/AIoTHackStorm/pkg/pb"
)

func startListener(t *testing.T, h *GRPCHandler) pb.ListenerClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	pb.RegisterListenerServer(srv, h)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return pb.NewListenerClient(conn)
}

func TestGRPCLatest(t *testing.T) {
	store := services.NewResultStore()
	store.Publish(context.Background(), happyResult)
	client := startListener(t, NewGRPCHandler(store, services.NewBroadcaster(4), services.NewMetrics()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := client.Latest(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	res, err := models.ResultFromStruct(out)
	if err != nil {
		t.Fatalf("ResultFromStruct: %v", err)
	}
	if res.Emotion != emotion.Happy || res.Face != happyResult.Face {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestGRPCWatch(t *testing.T) {
	store := services.NewResultStore()
	broadcaster := services.NewBroadcaster(4)
	client := startListener(t, NewGRPCHandler(store, broadcaster, services.NewMetrics()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.Watch(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	first, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	res, _ := models.ResultFromStruct(first)
	if res.Emotion != emotion.Neutral {
		t.Errorf("expected the current result first, got %q", res.Emotion)
	}

	// the subscription exists once the first message arrived
	broadcaster.Publish(ctx, happyResult)

	next, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	res, _ = models.ResultFromStruct(next)
	if res.Emotion != emotion.Happy {
		t.Errorf("expected happy, got %q", res.Emotion)
	}
}

func TestWebSocketHub(t *testing.T) {
	store := services.NewResultStore()
	broadcaster := services.NewBroadcaster(4)
	metrics := services.NewMetrics()
	hub := NewHub(store, broadcaster, metrics)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?clientId=dash-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var welcome WebSocketMessage
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if welcome.Type != MessageWelcome || welcome.ClientID != "dash-1" {
		t.Fatalf("unexpected welcome %+v", welcome)
	}
	if hub.Clients() != 1 {
		t.Errorf("expected 1 client, got %d", hub.Clients())
	}

	broadcaster.Publish(context.Background(), happyResult)

	var pushed struct {
		Type    string                 `json:"type"`
		Payload models.DetectionResult `json:"payload"`
	}
	if err := conn.ReadJSON(&pushed); err != nil {
		t.Fatalf("read result: %v", err)
	}
	if pushed.Type != MessageResult || pushed.Payload.Emotion != emotion.Happy {
		t.Errorf("unexpected push %+v", pushed)
	}

	if err := conn.WriteJSON(WebSocketMessage{Type: MessagePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong WebSocketMessage
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != MessagePong {
		t.Errorf("expected PONG, got %q", pong.Type)
	}
}
