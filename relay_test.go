package subscriber

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/securedimensions/websub-subscriber/model"
)

func sign(algorithm string, secret string, body []byte) string {
	var mac []byte

	switch algorithm {
	case "sha1":
		m := hmac.New(sha1.New, []byte(secret))
		m.Write(body)
		mac = m.Sum(nil)
	default:
		m := hmac.New(sha256.New, []byte(secret))
		m.Write(body)
		mac = m.Sum(nil)
	}

	return algorithm + "=" + hex.EncodeToString(mac)
}

func postContent(s *Subscriber, callback string, body []byte, signature string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, "/callback/"+callback, bytes.NewReader(body))

	if signature != "" {
		req.Header.Set("X-Hub-Signature", signature)
	}

	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w.Result()
}

func TestContent_UnknownCallback(t *testing.T) {
	s, _ := newTestSubscriber(t)

	res := postContent(s, "nope", []byte(`{"a":1}`), "")
	require.Equal(t, http.StatusGone, res.StatusCode)
}

func TestContent_NoSecretStreams(t *testing.T) {
	s, _ := newTestSubscriber(t)

	sock := &fakeSocket{}

	addSubscription(t, s, &model.Subscription{
		Callback: "abc",
		Topic:    "urn:x",
		State:    model.StateActive,
		Socket:   sock,
	})

	payload := []byte{0x00, 0xff, 0x10, 'j', 's', 'o', 'n'}

	res := postContent(s, "abc", payload, "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.Equal(t, payload, bytes.Join(sock.messages(), nil))
}

func TestContent_MissingSignatureDropped(t *testing.T) {
	s, _ := newTestSubscriber(t)

	sock := &fakeSocket{}

	addSubscription(t, s, &model.Subscription{
		Callback: "abc",
		Topic:    "urn:x",
		Secret:   "s3cret",
		State:    model.StateActive,
		Socket:   sock,
	})

	res := postContent(s, "abc", []byte(`{"a":1}`), "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Empty(t, sock.messages())
}

func TestContent_ValidSignatureDelivered(t *testing.T) {
	s, _ := newTestSubscriber(t)

	sock := &fakeSocket{}

	addSubscription(t, s, &model.Subscription{
		Callback: "abc",
		Topic:    "urn:x",
		Secret:   "s3cret",
		State:    model.StateActive,
		Socket:   sock,
	})

	payload := []byte(`{"observation":42}`)

	res := postContent(s, "abc", payload, sign("sha256", "s3cret", payload))
	require.Equal(t, http.StatusOK, res.StatusCode)

	msgs := sock.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, payload, msgs[0])
}

func TestContent_Sha1SignatureDelivered(t *testing.T) {
	s, _ := newTestSubscriber(t)

	sock := &fakeSocket{}

	addSubscription(t, s, &model.Subscription{
		Callback: "abc",
		Topic:    "urn:x",
		Secret:   "s3cret",
		State:    model.StateActive,
		Socket:   sock,
	})

	payload := []byte(`{"observation":42}`)

	res := postContent(s, "abc", payload, sign("sha1", "s3cret", payload))
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, sock.messages(), 1)
}

func TestContent_InvalidSignatureDropped(t *testing.T) {
	s, _ := newTestSubscriber(t)

	sock := &fakeSocket{}

	addSubscription(t, s, &model.Subscription{
		Callback: "abc",
		Topic:    "urn:x",
		Secret:   "s3cret",
		State:    model.StateActive,
		Socket:   sock,
	})

	res := postContent(s, "abc", []byte(`{"a":1}`), "sha256=deadbeef")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Empty(t, sock.messages())
}

func TestContent_UnsupportedAlgorithmDropped(t *testing.T) {
	s, _ := newTestSubscriber(t)

	sock := &fakeSocket{}

	addSubscription(t, s, &model.Subscription{
		Callback: "abc",
		Topic:    "urn:x",
		Secret:   "s3cret",
		State:    model.StateActive,
		Socket:   sock,
	})

	payload := []byte(`{"a":1}`)

	res := postContent(s, "abc", payload, sign("md5", "s3cret", payload))
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Empty(t, sock.messages())
}

func TestContent_MalformedSignatureDropped(t *testing.T) {
	s, _ := newTestSubscriber(t)

	sock := &fakeSocket{}

	addSubscription(t, s, &model.Subscription{
		Callback: "abc",
		Topic:    "urn:x",
		Secret:   "s3cret",
		State:    model.StateActive,
		Socket:   sock,
	})

	res := postContent(s, "abc", []byte(`{"a":1}`), "nonsense")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Empty(t, sock.messages())
}

func TestContent_SocketGone(t *testing.T) {
	s, _ := newTestSubscriber(t)

	addSubscription(t, s, &model.Subscription{
		Callback: "abc",
		Topic:    "urn:x",
		State:    model.StatePendingUnsubscribe,
	})

	res := postContent(s, "abc", []byte(`{"a":1}`), "")
	require.Equal(t, http.StatusGone, res.StatusCode)
}
