package websocket

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/pulseapp/pulse/internal/logger"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	logger.SugaredLog = logger.Log.Sugar()
	os.Exit(m.Run())
}

// newTestClient builds a client with no underlying connection; tests
// read its outbound frames straight from the send channel
func newTestClient(hub *Hub) *Client {
	return NewClient(hub, nil)
}

// readFrame pops the next outbound frame from a client's send channel
func readFrame(t *testing.T, c *Client) *Message {
	t.Helper()

	select {
	case data := <-c.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to decode frame: %v", err)
		}
		return &msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// readRaw pops the next outbound frame without decoding it
func readRaw(t *testing.T, c *Client) []byte {
	t.Helper()

	select {
	case data := <-c.send:
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// noFrame asserts that no frame is pending on the client's send channel
func noFrame(t *testing.T, c *Client) {
	t.Helper()

	select {
	case data := <-c.send:
		t.Fatalf("unexpected frame: %s", data)
	default:
	}
}
