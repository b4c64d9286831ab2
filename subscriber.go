// Package subscriber implements a WebSub (PubSubHubbub) subscriber that
// bridges hub content pushes to persistent WebSocket clients. A client
// connects over WebSocket declaring a topic and a hub; the subscriber runs
// the subscription handshake on its behalf, keeps the lease renewed, and
// relays authenticated content pushes to the socket until it closes.
package subscriber

import (
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"

	"github.com/securedimensions/websub-subscriber/model"
	"github.com/securedimensions/websub-subscriber/store"
)

const (
	ModeSubscribe   = "subscribe"
	ModeUnsubscribe = "unsubscribe"
)

const (
	defaultLeaseSeconds = 300
	defaultLeaseSkew    = 10
)

var v = validator.New()

// Option represents a Subscriber option.
type Option func(s *Subscriber)

// WithClient sets the HTTP client used for outbound hub requests. The
// client must not follow redirects.
func WithClient(client *http.Client) Option {
	return func(s *Subscriber) {
		s.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Subscriber) {
		s.logger = logger
	}
}

// WithLeaseSeconds sets the default lease duration requested from the hub
// when the WebSocket client does not supply one.
func WithLeaseSeconds(seconds int) Option {
	return func(s *Subscriber) {
		s.leaseSeconds = seconds
	}
}

// WithLeaseSkew sets the number of seconds subtracted from the verified
// lease when scheduling its renewal.
func WithLeaseSkew(seconds int) Option {
	return func(s *Subscriber) {
		s.leaseSkew = seconds
	}
}

// WithWorker lets you set the worker used to deliver outbound hub
// requests.
func WithWorker(worker Worker) Option {
	return func(s *Subscriber) {
		s.worker = worker
	}
}

// Subscriber bridges WebSub hub callbacks to WebSocket clients.
type Subscriber struct {
	client       *http.Client
	store        store.Store
	worker       Worker
	callbackURL  string
	leaseSeconds int
	leaseSkew    int
	origins      map[string]struct{}
	upgrader     websocket.Upgrader
	router       chi.Router
	logger       *slog.Logger
	events       handlerList
}

// New creates a new Subscriber. callbackURL is the absolute root URL the
// hub reaches this process under; any trailing slash is stripped so the
// /callback/{id} segment joins unambiguously. origins is the allow-list
// of WebSocket origin hostnames.
func New(st store.Store, callbackURL string, origins []string, opts ...Option) *Subscriber {
	s := &Subscriber{
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		store:        st,
		callbackURL:  strings.TrimRight(callbackURL, "/"),
		leaseSeconds: defaultLeaseSeconds,
		leaseSkew:    defaultLeaseSkew,
		origins:      make(map[string]struct{}, len(origins)),
		logger:       slog.Default(),
	}

	for _, origin := range origins {
		s.origins[origin] = struct{}{}
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.worker == nil {
		s.worker = NewGoWorker(s, runtime.NumCPU())
		s.worker.Start()
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	s.router = s.routes()

	return s
}

// Close cancels every armed renewal and stops the outbound request
// worker. A teardown or renewal firing that races Close drops its hub
// request instead of panicking. Close is idempotent.
func (s *Subscriber) Close() {
	s.store.Each(func(sub *model.Subscription) {
		if sub.Renewal != nil {
			sub.Renewal.Cancel()
			sub.Renewal = nil
		}
	})

	s.worker.Stop()
}

// ServeHTTP serves the subscriber's HTTP surface: the hub-facing callback
// endpoints and the client-facing WebSocket endpoint.
func (s *Subscriber) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Subscriber) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "method not implemented", http.StatusMethodNotAllowed)
	})

	r.Get("/callback/{id}", s.handleVerify)
	r.Post("/callback/{id}", s.handleContent)
	r.Get("/ws", s.handleSocket)

	return r
}

// logRequests logs HTTP requests. Payload content never reaches the log.
func (s *Subscriber) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// checkOrigin validates a WebSocket origin hostname against the
// allow-list. Requests without an Origin header are not browser
// connections and pass, matching the upgrader's default.
func (s *Subscriber) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)

	if err != nil {
		return false
	}

	_, ok := s.origins[u.Hostname()]
	return ok
}

// decodeQuery decodes a request's query parameters into a struct using
// the gorilla schema package.
func decodeQuery(r *http.Request, dest interface{}) error {
	decoder := schema.NewDecoder()
	decoder.SetAliasTag("form")
	decoder.IgnoreUnknownKeys(true)
	return decoder.Decode(dest, r.URL.Query())
}
