package subscriber

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/securedimensions/websub-subscriber/model"
	"github.com/securedimensions/websub-subscriber/store/memory"
)

// fakeSocket records everything sent to it.
type fakeSocket struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (f *fakeSocket) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg := make([]byte, len(data))
	copy(msg, data)
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeSocket) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([][]byte, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func newTestSubscriber(t *testing.T, opts ...Option) (*Subscriber, *memory.Store) {
	t.Helper()

	st := memory.New()
	t.Cleanup(st.Close)

	s := New(st, "http://bridge.example", []string{"client.example"}, opts...)
	t.Cleanup(s.Close)

	return s, st
}

// addSubscription seeds the store directly, bypassing the gateway.
func addSubscription(t *testing.T, s *Subscriber, sub *model.Subscription) {
	t.Helper()

	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}

	require.NoError(t, s.store.Add(sub))
}

func doRequest(s *Subscriber, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func verifyTarget(callback string, params url.Values) string {
	return "/callback/" + callback + "?" + params.Encode()
}

func TestMethodsNotImplemented(t *testing.T) {
	s, _ := newTestSubscriber(t)

	for _, method := range []string{http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions, http.MethodHead} {
		w := doRequest(s, method, "/callback/abc", nil)
		require.Equal(t, http.StatusMethodNotAllowed, w.Code, "method %s", method)
	}
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	s, _ := newTestSubscriber(t, WithLogger(logger))

	w := doRequest(s, http.MethodGet, "/callback/missing", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var entry map[string]any
	found := false
	for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["msg"] == "http request" {
			found = true
			break
		}
	}
	require.True(t, found, "no request log entry written")

	require.Equal(t, http.MethodGet, entry["method"])
	require.Equal(t, "/callback/missing", entry["path"])
	require.Equal(t, float64(http.StatusBadRequest), entry["status"])
}
