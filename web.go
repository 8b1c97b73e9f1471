package main

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hrclock/internal/refresh"
	"hrclock/internal/worktime"
)

type PageData struct {
	Summary worktime.Summary
	Loading bool
	Error   string

	Updated     string
	TokenExpiry string
	Expired     bool

	Target  string
	Version string
}

func (a *app) pageData() PageData {
	st := a.refresher.State()
	now := a.now()
	data := PageData{
		Summary: worktime.Summarize(st.Snapshot, a.cfg.TargetWorkday, now, a.pick),
		Loading: st.Loading,
		Target:  a.cfg.TargetWorkday.String(),
		Version: appVersion,
	}
	if st.LastError != nil {
		data.Error = mapRefreshError(st.LastError).Error()
	}
	if !st.LastSuccess.IsZero() {
		data.Updated = st.LastSuccess.Format("15:04:05")
	}
	if !st.TokenExpiry.IsZero() {
		data.TokenExpiry = st.TokenExpiry.Format("Jan 02 15:04")
		data.Expired = st.TokenExpiry.Before(now)
	}
	return data
}

func newWebHandler(a *app) http.Handler {
	tpl := template.Must(template.New("page").Parse(pageHTML))
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if err := tpl.Execute(w, a.pageData()); err != nil {
			a.logger.Error("render page", zap.Error(err))
		}
	})

	mux.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !sameOrigin(r) {
			http.Error(w, "cross-origin refresh refused", http.StatusForbidden)
			return
		}
		// errors are logged by the refresher and shown on the page
		if err := a.refresher.Refresh(r.Context()); errors.Is(err, refresh.ErrInFlight) {
			a.logger.Debug("refresh button pressed while loading")
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	mux.Handle("/capture", a.recorder.Handler())
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// sameOrigin reports whether a browser POST came from a page served by this
// host. Requests without an Origin header (curl, old browsers) pass.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// serveWeb runs the web UI until ctx is cancelled. It returns once the server
// has shut down and the background refresh and watcher have exited.
func serveWeb(ctx context.Context, a *app, addr string, watch bool) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      newWebHandler(a),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_ = a.refresher.Refresh(gctx)
		return nil
	})
	if watch {
		g.Go(func() error {
			a.watch(gctx, func() { _ = a.refresher.Refresh(gctx) })
			return nil
		})
	}
	g.Go(func() error {
		a.logger.Info("web UI listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

/* ---------------- HTML ---------------- */

const pageHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>hrclock</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  {{if .Loading}}<meta http-equiv="refresh" content="2">{{end}}
  <style>
    body { font-family: system-ui, sans-serif; margin: 0; padding: 24px; max-width: 480px; box-sizing: border-box; }
    * { box-sizing: border-box; }
    .card { border: 1px solid #e0e0e0; border-radius: 10px; padding: 16px; margin: 16px 0; background: #f4f6f8; }
    .title { display: flex; align-items: center; justify-content: space-between; color: #0288d1; font-size: 1.4em; margin-bottom: 8px; }
    .title form { margin: 0; }
    .title button { padding: 6px 12px; font-size: 0.7em; background: #1976d2; color: #fff; border: none; border-radius: 6px; cursor: pointer; }
    .title button:hover { background: #1565c0; }
    .title button[disabled] { background: #90a4ae; cursor: default; }
    .k { color: #666; margin-top: 12px; }
    .v { font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, monospace; font-size: 1.1em; }
    .comment { font-size: 0.8em; color: #666; margin-top: 14px; }
    .err { color: #b00020; margin: 12px 0; padding: 10px; background: #ffebee; border-radius: 6px; }
    .warn { color: #8a6d00; margin: 12px 0; padding: 10px; background: #fff8e1; border-radius: 6px; }
    footer { margin-top: 40px; color: #666; font-size: 0.9em; text-align: center; }
  </style>
</head>
<body>
  <div class="card">
    <div class="title">
      Break Timing
      <form method="POST" action="/refresh">
        <button type="submit" {{if .Loading}}disabled{{end}}>Refresh</button>
      </form>
    </div>

    {{with .Summary}}
    <div class="k">Break Hours:</div>
    <div class="v">{{if $.Loading}}Loading{{else}}{{.Break}}{{end}}</div>
    <div class="k">Total Work Hours:</div>
    <div class="v">{{if $.Loading}}Loading{{else}}{{.Worked}}{{end}}</div>
    <div class="k">Net Work Hours:</div>
    <div class="v">{{if $.Loading}}Loading{{else}}{{.Net}}{{end}}</div>
    <div class="k">Clock Out (target {{$.Target}}):</div>
    <div class="v">{{if $.Loading}}Loading{{else}}{{.ClockOut}}{{end}}</div>
    {{if and .Comment (not $.Loading)}}<div class="comment">{{.Comment}}</div>{{end}}
    {{end}}
  </div>

  {{if .Error}}<div class="err">{{.Error}}</div>{{end}}
  {{if .Expired}}<div class="warn">The captured token expired {{.TokenExpiry}}. Open the HR portal to capture a new one.</div>{{end}}

  <footer>
    {{if .Updated}}Updated {{.Updated}} &middot; {{end}}hrclock v{{.Version}}
  </footer>
</body>
</html>`
