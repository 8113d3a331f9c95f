package unix

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/common"
)

// startEchoServer serves a handler answering every control with its body
func startEchoServer(t *testing.T, maxMessageSize int) string {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "echo.sock")
	server := NewUnixServerTransport()
	server.RegisterHandler(func(hdr protocol.ReqHeader, body []byte) (protocol.Operation, []byte) {
		if hdr.Operation != protocol.OperationControl {
			return protocol.OperationReplyControl, nil
		}
		return protocol.OperationReplyControl, append([]byte{}, body...)
	})

	go func() {
		_ = server.Listen(common.ServerConfig{
			Transport: common.ServerTransportConfig{Endpoint: socket, MaxMessageSize: maxMessageSize, WorkersPerConn: 2},
		})
	}()
	t.Cleanup(func() { _ = server.Close() })

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(socket); err == nil {
			return socket
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not create %s", socket)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func connect(t *testing.T, socket string, maxMessageSize int) func(protocol.Operation, []byte) ([]byte, error) {
	t.Helper()

	client := NewUnixClientTransport()
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{socket},
			ConnectionsPerEndpoint: 2,
			MaxMessageSize:         maxMessageSize,
		},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return func(op protocol.Operation, body []byte) ([]byte, error) {
		return client.Send(op, protocol.DestCurrent, body)
	}
}

// TestRoundTrip tests that replies reach the request they answer
func TestRoundTrip(t *testing.T) {
	socket := startEchoServer(t, 4096)
	send := connect(t, socket, 4096)

	tests := []struct {
		name string
		body []byte
	}{
		{"Empty", nil},
		{"Small", []byte("ping")},
		{"Largest", bytes.Repeat([]byte{0xAB}, 4096-protocol.HeaderSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := send(protocol.OperationControl, tt.body)
			if err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			if !bytes.Equal(reply, tt.body) && !(len(reply) == 0 && len(tt.body) == 0) {
				t.Errorf("reply has %d bytes, want %d", len(reply), len(tt.body))
			}
		})
	}

	t.Run("Concurrent", func(t *testing.T) {
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			go func(i int) {
				body := []byte{byte(i)}
				reply, err := send(protocol.OperationControl, body)
				if err == nil && !bytes.Equal(reply, body) {
					err = os.ErrInvalid
				}
				errs <- err
			}(i)
		}
		for i := 0; i < 20; i++ {
			if err := <-errs; err != nil {
				t.Errorf("concurrent Send failed: %v", err)
			}
		}
	})
}

// TestOversizedPacket tests both ends of the maximum message size
func TestOversizedPacket(t *testing.T) {
	socket := startEchoServer(t, 1024)

	// the client refuses to send a packet above its own limit
	send := connect(t, socket, 1024)
	if _, err := send(protocol.OperationControl, make([]byte, 1024)); err == nil {
		t.Errorf("expected an error for a packet above the client limit")
	}

	// the server drops a connection announcing a packet above its limit
	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	hdr := protocol.NewReqHeader(protocol.OperationControl, protocol.DestCurrent, 0, 1)
	hdr.Length = 1 << 20
	if _, err := conn.Write(protocol.Marshal(&hdr)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if n, err := conn.Read(make([]byte, 1)); err == nil {
		t.Errorf("server answered %d bytes instead of closing the connection", n)
	} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
		t.Errorf("server kept the connection open")
	}
}
