// Package capture records the Authorization header of portal requests
// observed by a browser-side hook into the credential store.
package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"hrclock/internal/credstore"
)

// DefaultHosts are the portal hosts whose requests carry the bearer token.
var DefaultHosts = []string{"api.zebihr.com", "app.zebihr.com"}

// ErrIgnored is returned by Observe for requests that are not portal calls
// or carry no Authorization value.
var ErrIgnored = errors.New("request ignored")

// ErrBadURL is returned by Observe for a URL that does not parse or has no
// host.
var ErrBadURL = errors.New("bad request url")

// Saver is the write side of the credential store.
type Saver interface {
	Save(credstore.Credentials) error
}

// Recorder filters observed requests and stores the matching ones.
type Recorder struct {
	store  Saver
	hosts  map[string]struct{}
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder for hosts; an empty list uses DefaultHosts.
func NewRecorder(store Saver, hosts []string, logger *zap.Logger) *Recorder {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			set[h] = struct{}{}
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, hosts: set, logger: logger, now: time.Now}
}

// Observe stores rawURL and authorization when rawURL points at a portal host.
func (r *Recorder) Observe(rawURL, authorization string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrBadURL, rawURL)
	}
	if _, ok := r.hosts[strings.ToLower(u.Hostname())]; !ok {
		r.logger.Debug("ignoring non-portal request", zap.String("host", u.Hostname()))
		return fmt.Errorf("%w: host %s", ErrIgnored, u.Hostname())
	}
	if strings.TrimSpace(authorization) == "" {
		return fmt.Errorf("%w: no authorization header", ErrIgnored)
	}

	if err := r.store.Save(credstore.Credentials{
		APIURL:     u.String(),
		APIHeaders: authorization,
		CapturedAt: r.now(),
	}); err != nil {
		return fmt.Errorf("store captured credentials: %w", err)
	}
	r.logger.Info("captured portal credentials", zap.String("url", u.String()))
	return nil
}

type observation struct {
	URL           string `json:"url"`
	Authorization string `json:"authorization"`
}

// Handler accepts POSTed {"url", "authorization"} observations sent as
// application/json. It answers 204 when stored, 202 when ignored, 400 on a bad
// body or URL and 415 for any other content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if mt, _, err := mime.ParseMediaType(req.Header.Get("Content-Type")); err != nil || mt != "application/json" {
			http.Error(w, "expected application/json", http.StatusUnsupportedMediaType)
			return
		}
		var obs observation
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 64<<10)).Decode(&obs); err != nil {
			http.Error(w, "bad observation", http.StatusBadRequest)
			return
		}
		err := r.Observe(obs.URL, obs.Authorization)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, ErrIgnored):
			w.WriteHeader(http.StatusAccepted)
		case errors.Is(err, ErrBadURL):
			http.Error(w, "bad observation url", http.StatusBadRequest)
		default:
			r.logger.Error("capture failed", zap.Error(err))
			http.Error(w, "capture failed", http.StatusInternalServerError)
		}
	})
}
