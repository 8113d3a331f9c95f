package http

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/common"
	"github.com/ValentinKolb/dctl/rpc/transport"
	"github.com/cockroachdb/errors"
)

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs    []*url.URL
	client        *http.Client
	config        common.ClientConfig
	counter       uint32
	nextRequestID atomic.Uint32
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return errors.New("no endpoints provided")
	}

	parsedURLs := make([]*url.URL, len(config.Transport.Endpoints))
	for i, server := range config.Transport.Endpoints {
		parsedURL, err := url.Parse(server)
		if err != nil {
			return errors.Wrapf(err, "invalid endpoint %q", server)
		}
		parsedURLs[i] = parsedURL.JoinPath(PacketPath)
	}

	t.client = &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: max(config.Transport.ConnectionsPerEndpoint, 1),
			IdleConnTimeout:     time.Duration(config.TimeoutSecond) * time.Second,
		},
	}
	t.serverURLs = parsedURLs
	t.config = config
	t.counter = 0

	return nil
}

func (t *httpClientTransport) Send(op protocol.Operation, destNode uint32, body []byte) ([]byte, error) {
	if t.client == nil {
		return nil, errors.New("http transport not initialized")
	}
	maxLength := t.config.Transport.MaxMessage()
	if protocol.HeaderSize+len(body) > maxLength {
		return nil, errors.Newf("packet of %d bytes exceeds maximum message size %d", protocol.HeaderSize+len(body), maxLength)
	}

	reqID := t.nextRequestID.Add(1)
	hdr := protocol.NewReqHeader(op, destNode, protocol.DestCurrent, reqID)
	hdr.Length = uint32(protocol.HeaderSize + len(body))
	packet := append(protocol.Marshal(&hdr), body...)

	var lastErr error
	for i := 0; i < max(t.config.Transport.RetryCount, 1); i++ {
		// Select the next server via round-robin
		idx := atomic.AddUint32(&t.counter, 1) % uint32(len(t.serverURLs))

		reply, err := t.post(t.serverURLs[idx].String(), packet, maxLength)
		if err == nil {
			return reply, nil
		}
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "failed to send %s packet", op)
}

func (t *httpClientTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	t.client = nil
	t.serverURLs = nil
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// post sends one packet and returns the body of the reply packet
func (t *httpClientTransport) post(requestURL string, packet []byte, maxLength int) ([]byte, error) {
	httpResponse, err := t.client.Post(requestURL, "application/octet-stream", bytes.NewReader(packet))
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 512))
		return nil, errors.Newf("http error: %s: %s", httpResponse.Status, bytes.TrimSpace(msg))
	}

	reply, err := io.ReadAll(io.LimitReader(httpResponse.Body, int64(maxLength)+1))
	if err != nil {
		return nil, err
	}
	hdr, err := protocol.ParseHeader(reply, maxLength)
	if err != nil {
		return nil, err
	}
	if int(hdr.Length) != len(reply) {
		return nil, errors.Wrapf(protocol.ErrMalformedLength, "reply header length %d, received %d bytes", hdr.Length, len(reply))
	}
	return reply[protocol.HeaderSize:], nil
}
