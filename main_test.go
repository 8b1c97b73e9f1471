package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"hrclock/internal/config"
	"hrclock/internal/credstore"
	"hrclock/internal/hrportal"
	"hrclock/internal/refresh"
	"hrclock/internal/worktime"
)

func fakePortal(t *testing.T, workHrs, breakHrs string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/customer/238/employee/42/today-work-hrs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"workHrs":"` + workHrs + `"}`))
	})
	mux.HandleFunc("/customer/238/employee/42/break-time", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"breakHrs":"` + breakHrs + `"}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testApp(t *testing.T, portalURL string) *app {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		TargetWorkday: worktime.DefaultTarget,
		BaseURL:       portalURL,
		CustomerID:    "238",
		StorePath:     filepath.Join(dir, "credentials.yml"),
	}
	clock := func() time.Time { return time.Date(2025, time.March, 3, 9, 0, 0, 0, time.Local) }
	a := newApp(cfg, zap.NewNop(), refresh.WithClock(clock))
	a.now = clock
	a.pick = func() string { return "go home" }
	return a
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCalcCommand(t *testing.T) {
	out, err := runCmd(t, "calc", "--worked", "07:00:00", "--break", "00:00:00", "--now", "09:00")
	require.NoError(t, err)
	assert.Contains(t, out, "Net Work Hours:   07:00:00")
	assert.Contains(t, out, "Clock Out:        10:30 AM")

	out, err = runCmd(t, "calc", "--worked", "10:00:00", "--break", "01:00:00")
	require.NoError(t, err)
	assert.Contains(t, out, "Net Work Hours:   09:00:00")
	assert.Contains(t, out, worktime.ClockOutNow)
}

func TestCalcCommandUsesConfiguredTarget(t *testing.T) {
	out, err := runCmd(t, "--target-workday", "09:00:00", "calc", "--worked", "08:00:00", "--now", "09:00")
	require.NoError(t, err)
	assert.Contains(t, out, "Clock Out:        10:00 AM")

	cfgFile := filepath.Join(t.TempDir(), "hrclock.yml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("target_workday: \"07:00:00\"\n"), 0600))
	out, err = runCmd(t, "--config", cfgFile, "calc", "--worked", "07:00:00", "--now", "09:00")
	require.NoError(t, err)
	assert.Contains(t, out, worktime.ClockOutNow)
}

func TestCalcCommandRejectsMalformed(t *testing.T) {
	_, err := runCmd(t, "calc", "--worked", "12:5:")
	require.Error(t, err)
	assert.ErrorIs(t, err, worktime.ErrMalformedInput)
}

func TestCaptureThenFetchCommand(t *testing.T) {
	srv := fakePortal(t, "09:00:00", "00:30:00")
	store := filepath.Join(t.TempDir(), "credentials.yml")
	cfgFile := filepath.Join(t.TempDir(), "hrclock.yml")

	_, err := runCmd(t, "--config", cfgFile, "--store-path", store, "capture",
		"--url", "https://api.zebihr.com/customer/238/employee/42/today-work-hrs",
		"--authorization", "Bearer abc")
	require.NoError(t, err)

	out, err := runCmd(t, "--config", cfgFile, "--store-path", store, "--base-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Break Hours:      00:30:00")
	assert.Contains(t, out, "Total Work Hours: 09:00:00")
	assert.Contains(t, out, "Net Work Hours:   08:30:00")
	assert.Contains(t, out, worktime.ClockOutNow)
}

func TestFetchWithoutCaptureFails(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "hrclock.yml")
	store := filepath.Join(t.TempDir(), "credentials.yml")

	out, err := runCmd(t, "--config", cfgFile, "--store-path", store)
	require.Error(t, err)
	assert.ErrorIs(t, err, credstore.ErrNotCaptured)
	assert.Contains(t, out, "Total Work Hours: "+worktime.NoHours)
}

func TestCaptureRejectsOtherHosts(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "hrclock.yml")
	_, err := runCmd(t, "--config", cfgFile, "capture", "--url", "https://example.com/employee/1/", "--authorization", "Bearer abc")
	assert.Error(t, err)
}

func TestMapRefreshError(t *testing.T) {
	assert.NoError(t, mapRefreshError(nil))

	err := mapRefreshError(&hrportal.FetchError{Endpoint: "today-work-hrs", Status: http.StatusUnauthorized})
	assert.Contains(t, err.Error(), "token was rejected")
	var fe *hrportal.FetchError
	assert.True(t, errors.As(err, &fe))

	err = mapRefreshError(hrportal.ErrMissingIdentifier)
	assert.ErrorIs(t, err, hrportal.ErrMissingIdentifier)

	other := errors.New("boom")
	assert.Equal(t, other, mapRefreshError(other))
}

func TestWebHandler(t *testing.T) {
	srv := fakePortal(t, "07:00:00", "00:00:00")
	a := testApp(t, srv.URL)
	require.NoError(t, a.store.Save(credstore.Credentials{
		APIURL:     "https://api.zebihr.com/customer/238/employee/42/today-work-hrs",
		APIHeaders: "Bearer abc",
	}))
	h := newWebHandler(a)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), worktime.NoHours)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/refresh", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	body := rr.Body.String()
	assert.Contains(t, body, "07:00:00")
	assert.Contains(t, body, "10:30 AM")
	assert.NotContains(t, body, "go home")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/refresh", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWebCaptureAndMetrics(t *testing.T) {
	a := testApp(t, "http://127.0.0.1:1")
	h := newWebHandler(a)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/capture",
		strings.NewReader(`{"url":"https://api.zebihr.com/customer/238/employee/42/x","authorization":"Bearer abc"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	creds, err := a.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", creds.APIHeaders)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "hrclock_refresh_last_success_timestamp_seconds")
}

func TestWebClockOutStableAcrossRenders(t *testing.T) {
	srv := fakePortal(t, "07:00:00", "00:00:00")
	a := testApp(t, srv.URL)
	require.NoError(t, a.store.Save(credstore.Credentials{
		APIURL:     "https://api.zebihr.com/customer/238/employee/42/x",
		APIHeaders: "Bearer abc",
	}))
	require.NoError(t, a.refresher.Refresh(context.Background()))
	assert.Equal(t, "10:30 AM", a.pageData().Summary.ClockOut)

	a.now = func() time.Time { return time.Date(2025, time.March, 3, 10, 0, 0, 0, time.Local) }
	assert.Equal(t, "10:30 AM", a.pageData().Summary.ClockOut)
	assert.Equal(t, "10:30 AM", a.summary().ClockOut)
}

func TestWebRejectsCrossSitePosts(t *testing.T) {
	a := testApp(t, "http://127.0.0.1:1")
	h := newWebHandler(a)

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req.Header.Set("Origin", "https://attacker.test")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req.Header.Set("Origin", "http://"+req.Host)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	// a form or text/plain POST cannot replace the stored credentials
	req = httptest.NewRequest(http.MethodPost, "/capture",
		strings.NewReader(`{"url":"https://api.zebihr.com/customer/238/employee/7/x","authorization":"Bearer evil"}`))
	req.Header.Set("Content-Type", "text/plain")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	_, err := a.store.Load(context.Background())
	assert.ErrorIs(t, err, credstore.ErrNotCaptured)
}

func TestServeWebWaitsForBackgroundWork(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	a := testApp(t, "http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveWeb(ctx, a, "127.0.0.1:0", true) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serveWeb did not return after cancel")
	}
	assert.False(t, a.refresher.State().Loading)
}

func TestWebShowsErrorAndKeepsValues(t *testing.T) {
	srv := fakePortal(t, "07:00:00", "00:10:00")
	a := testApp(t, srv.URL)
	require.NoError(t, a.store.Save(credstore.Credentials{
		APIURL:     "https://api.zebihr.com/customer/238/employee/42/x",
		APIHeaders: "Bearer abc",
	}))
	require.NoError(t, a.refresher.Refresh(context.Background()))

	srv.Close()
	require.Error(t, a.refresher.Refresh(context.Background()))

	data := a.pageData()
	assert.Equal(t, "07:00:00", data.Summary.Worked)
	assert.Equal(t, "06:50:00", data.Summary.Net)
	assert.NotEmpty(t, data.Error)
	assert.Equal(t, "09:00:00", data.Updated)
}

func TestTUIModel(t *testing.T) {
	srv := fakePortal(t, "07:00:00", "00:30:00")
	a := testApp(t, srv.URL)
	require.NoError(t, a.store.Save(credstore.Credentials{
		APIURL:     "https://api.zebihr.com/customer/238/employee/42/x",
		APIHeaders: "Bearer abc",
	}))

	m := newTUIModel(context.Background(), a)
	assert.Contains(t, m.View(), "Loading")

	// r while loading is ignored
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Nil(t, cmd)
	m = next.(tuiModel)

	msg := m.refreshCmd()()
	next, _ = m.Update(msg)
	m = next.(tuiModel)
	view := m.View()
	assert.Contains(t, view, "06:30:00")
	assert.Contains(t, view, "11:00 AM")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
