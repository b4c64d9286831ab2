package subscriber

import (
	"crypto/hmac"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/securedimensions/websub-subscriber/model"
)

const streamChunkSize = 32 * 1024

// handleContent handles the hub's content distribution POSTs. Payloads
// are treated as raw bytes throughout; signature verification and relay
// never assume a content type. Authentication failures are acknowledged
// with success so the hub is never told which check failed.
func (s *Subscriber) handleContent(w http.ResponseWriter, r *http.Request) {
	callback := chi.URLParam(r, "id")

	log := s.logger.With("callback", callback)

	sub, err := s.store.Get(callback)

	if err != nil {
		log.Debug("subscription not found, signalling gone")
		w.WriteHeader(http.StatusGone)
		return
	}

	if sub.Socket == nil {
		// Teardown has begun; tell the hub to stop delivering.
		log.Debug("subscription has no bound socket, signalling gone")
		w.WriteHeader(http.StatusGone)
		return
	}

	if sub.Secret == "" {
		s.streamToSocket(log, sub.Socket, r.Body)
		acknowledge(w)
		return
	}

	signature := r.Header.Get("X-Hub-Signature")

	if signature == "" {
		log.Error("ignoring message, X-Hub-Signature header missing")
		acknowledge(w)
		return
	}

	algorithm, digest, found := strings.Cut(signature, "=")

	if !found {
		log.Error("ignoring message, malformed X-Hub-Signature header")
		acknowledge(w)
		return
	}

	hasher, err := NewHasher(algorithm)

	if err != nil {
		log.Error("ignoring message", "error", err)
		acknowledge(w)
		return
	}

	body, err := io.ReadAll(r.Body)

	if err != nil {
		log.Error("failed to read message body", "error", err)
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}

	mac := hmac.New(hasher, []byte(sub.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(digest)) == 1 {
		if err := sub.Socket.Send(body); err != nil {
			log.Error("failed to relay message to socket", "error", err)
		}
	} else {
		log.Error("ignoring message, X-Hub-Signature mismatch")
	}

	acknowledge(w)
}

// streamToSocket forwards body chunks to the socket as they arrive.
// Secretless subscriptions have nothing to authenticate, so no buffering
// is needed beyond the read chunk.
func (s *Subscriber) streamToSocket(log *slog.Logger, socket model.SocketWriter, body io.Reader) {
	buf := make([]byte, streamChunkSize)

	for {
		n, err := body.Read(buf)

		if n > 0 {
			if sendErr := socket.Send(buf[:n]); sendErr != nil {
				log.Error("failed to stream message to socket", "error", sendErr)
				return
			}
		}

		if err == io.EOF {
			return
		}

		if err != nil {
			log.Error("failed to read message body", "error", err)
			return
		}
	}
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
