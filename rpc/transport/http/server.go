package http

import (
	"io"
	"net/http"
	"time"

	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/common"
	"github.com/ValentinKolb/dctl/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

// PacketPath is the path complete packets are posted to
const PacketPath = "/packet"

func NewHttpServerTransport() transport.IRPCServerTransport {
	return &httpServerTransport{}
}

type httpServerTransport struct {
	handler transport.ServerHandleFunc
	config  common.ServerConfig
	server  *http.Server
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) Listen(config common.ServerConfig) error {
	t.config = config

	mux := http.NewServeMux()

	if t.config.LogLevel == "debug" {
		mux.HandleFunc("POST "+PacketPath, loggerMiddleware(t.handleRequest))
	} else {
		mux.HandleFunc("POST "+PacketPath, t.handleRequest)
	}

	Logger.Infof("Starting HTTP server on %s", t.config.Transport.Endpoint)

	t.server = &http.Server{
		Addr:         t.config.Transport.Endpoint,
		Handler:      mux,
		ReadTimeout:  time.Duration(config.TimeoutSecond) * time.Second,
		WriteTimeout: time.Duration(config.TimeoutSecond) * time.Second,
	}
	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (t *httpServerTransport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.server.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleRequest handles one posted packet and writes the reply packet
func (t *httpServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	maxLength := t.config.Transport.MaxMessage()

	// Bodies above the maximum message size fail the read
	packet, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(maxLength)))
	defer r.Body.Close()
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusRequestEntityTooLarge)
		return
	}

	hdr, err := protocol.ParseHeader(packet, maxLength)
	if err == nil && int(hdr.Length) != len(packet) {
		err = protocol.ErrMalformedLength
	}
	if err != nil {
		common.RecordDecodeError(err)
		http.Error(w, "Invalid packet: "+err.Error(), http.StatusBadRequest)
		return
	}
	common.ObservePacketSize("in", len(packet))

	replyOp, reply := t.handler(hdr, packet[protocol.HeaderSize:])
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	replyHdr := protocol.NewReqHeader(replyOp, hdr.SrcNode, hdr.DestNode, hdr.ReqID)
	replyHdr.Generation = hdr.Generation
	replyHdr.Length = uint32(protocol.HeaderSize + len(reply))

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err = w.Write(append(protocol.Marshal(&replyHdr), reply...)); err != nil {
		Logger.Errorf("Failed to write reply: %v", err)
		return
	}
	common.ObservePacketSize("out", int(replyHdr.Length))
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}
