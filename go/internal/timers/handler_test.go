package timers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/oralboard/go/internal/models"
	"github.com/mcdev12/oralboard/go/internal/timers"
)

func newTestServer(t *testing.T) (*httptest.Server, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(epoch)
	registry := timers.NewRegistry(clock)
	app := timers.NewApp(registry, nil, nil, timers.DefaultConfig())

	mux := http.NewServeMux()
	timers.NewHandler(app).RegisterRoutes(mux)

	server := httptest.NewServer(timers.RegistryMiddleware(registry)(mux))
	t.Cleanup(server.Close)
	return server, clock
}

func doRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("http.NewRequest() error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestHandler_StatusCodes(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	timerURL := server.URL + "/api/v1/users/alice/cases/1/timer"

	steps := []struct {
		name       string
		method     string
		url        string
		wantStatus int
	}{
		{"get before start", http.MethodGet, timerURL, http.StatusNotFound},
		{"start", http.MethodPost, timerURL + "?durationSeconds=90", http.StatusCreated},
		{"start while running", http.MethodPost, timerURL, http.StatusConflict},
		{"get running", http.MethodGet, timerURL, http.StatusOK},
		{"cancel", http.MethodDelete, timerURL, http.StatusNoContent},
		{"cancel again", http.MethodDelete, timerURL, http.StatusNoContent},
		{"cancel missing", http.MethodDelete, server.URL + "/api/v1/users/bob/cases/3/timer", http.StatusNoContent},
		{"restart after cancel", http.MethodPost, timerURL, http.StatusCreated},
		{"case out of range", http.MethodPost, server.URL + "/api/v1/users/alice/cases/5/timer", http.StatusBadRequest},
		{"case not a number", http.MethodGet, server.URL + "/api/v1/users/alice/cases/two/timer", http.StatusBadRequest},
		{"duration not a number", http.MethodPost, server.URL + "/api/v1/users/alice/cases/2/timer?durationSeconds=soon", http.StatusBadRequest},
		{"duration zero", http.MethodPost, server.URL + "/api/v1/users/alice/cases/2/timer?durationSeconds=0", http.StatusBadRequest},
		{"duration too long", http.MethodPost, server.URL + "/api/v1/users/alice/cases/2/timer?durationSeconds=999999", http.StatusBadRequest},
	}

	// steps share one server and run in order
	for _, s := range steps {
		resp := doRequest(t, s.method, s.url)
		if resp.StatusCode != s.wantStatus {
			t.Errorf("%s: %s %s status = %d, want %d", s.name, s.method, s.url, resp.StatusCode, s.wantStatus)
		}
	}
}

func TestHandler_StartAndTick(t *testing.T) {
	t.Parallel()

	server, clock := newTestServer(t)
	timerURL := server.URL + "/api/v1/users/alice/cases/2/timer"

	resp := doRequest(t, http.MethodPost, timerURL+"?durationSeconds=5")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	started := decode[models.Timer](t, resp)
	if started.UserID != "alice" || started.CaseNumber != 2 || started.Status != models.TimerStatusRunning {
		t.Errorf("POST body = %+v, want running alice/2", started)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", resp.Header.Get("Content-Type"))
	}

	clock.Advance(6 * time.Second)

	got := decode[models.Timer](t, doRequest(t, http.MethodGet, timerURL))
	if got.ID != started.ID {
		t.Errorf("GET timerId = %s, want %s", got.ID, started.ID)
	}
	if got.Status != models.TimerStatusExpired || got.RemainingSeconds != 0 {
		t.Errorf("GET = %s/%d, want expired/0", got.Status, got.RemainingSeconds)
	}

	// an expired timer can be restarted with the default duration
	restarted := decode[models.Timer](t, doRequest(t, http.MethodPost, timerURL))
	if restarted.DurationSeconds != 420 {
		t.Errorf("restart durationSeconds = %d, want 420", restarted.DurationSeconds)
	}
	if restarted.ID == started.ID {
		t.Errorf("restart reused timerId %s", started.ID)
	}
}

func TestHandler_ListTimers(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	empty := decode[timers.ListTimersResponse](t, doRequest(t, http.MethodGet, server.URL+"/api/v1/users/alice/timers"))
	if empty.Timers == nil || len(empty.Timers) != 0 {
		t.Errorf("empty list = %#v, want empty non-nil slice", empty.Timers)
	}

	for _, c := range []string{"4", "1"} {
		resp := doRequest(t, http.MethodPost, server.URL+"/api/v1/users/alice/cases/"+c+"/timer")
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("POST case %s status = %d, want %d", c, resp.StatusCode, http.StatusCreated)
		}
	}

	list := decode[timers.ListTimersResponse](t, doRequest(t, http.MethodGet, server.URL+"/api/v1/users/alice/timers"))
	if len(list.Timers) != 2 || list.Timers[0].CaseNumber != 1 || list.Timers[1].CaseNumber != 4 {
		t.Errorf("list = %+v, want cases 1 and 4 in order", list.Timers)
	}
}

func TestHandler_ErrorBody(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/api/v1/users/alice/cases/1/timer")
	body := decode[timers.ErrorResponse](t, resp)
	if body.Error == "" {
		t.Errorf("error body is empty")
	}
}
