package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/daybook/internal/constants"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/repository"
	"github.com/julianstephens/daybook/internal/service"
	"github.com/julianstephens/daybook/internal/storage/memory"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newServer(t *testing.T) (*httptest.Server, *memory.Faulty) {
	t.Helper()
	store := memory.NewFaulty(memory.New())
	err := repository.NewSettings(store).Save(context.Background(), models.Settings{
		OwnerID:          "u1",
		AccountCreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Timezone:         "UTC",
		WakeTime:         "07:00",
		SleepTime:        "23:00",
	})
	if err != nil {
		t.Fatal(err)
	}
	svc := service.New(store, service.WithClock(func() time.Time { return now }))
	srv := httptest.NewServer(NewRouter(svc, Config{AllowedOrigins: []string{"http://localhost:3000"}}))
	t.Cleanup(func() {
		srv.Close()
		svc.Close()
	})
	return srv, store
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, out any) int {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(constants.OwnerHeader, "u1")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestMissingOwner(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/habits/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHabitEndpoints(t *testing.T) {
	srv, store := newServer(t)

	var habit models.Habit
	if code := do(t, srv, http.MethodPost, "/habits/", `{"title":"Read","metric_category":"time"}`, &habit); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}

	var res service.ToggleResult
	if code := do(t, srv, http.MethodPost, "/habits/"+habit.ID+"/toggle", "", &res); code != http.StatusOK {
		t.Fatalf("toggle status = %d", code)
	}
	if !res.Habit.IsCompletedToday || res.Habit.CurrentStreak != 1 || res.Outcome.Points != 2 {
		t.Errorf("toggle result = %+v", res)
	}

	var habits []models.Habit
	if code := do(t, srv, http.MethodGet, "/habits/", "", &habits); code != http.StatusOK || len(habits) != 1 {
		t.Fatalf("list = %d, %d habits", code, len(habits))
	}

	store.FailWrites(errors.New("offline"))
	var body errorBody
	if code := do(t, srv, http.MethodPost, "/habits/"+habit.ID+"/toggle", "", &body); code != http.StatusServiceUnavailable {
		t.Errorf("failed toggle status = %d, want 503", code)
	}
	if !body.Retryable {
		t.Error("failed toggle not marked retryable")
	}
	store.FailWrites(nil)

	if code := do(t, srv, http.MethodPost, "/habits/missing/toggle", "", nil); code != http.StatusNotFound {
		t.Errorf("unknown habit status = %d, want 404", code)
	}
	if code := do(t, srv, http.MethodDelete, "/habits/"+habit.ID, "", nil); code != http.StatusNoContent {
		t.Errorf("delete status = %d", code)
	}
	if code := do(t, srv, http.MethodPost, "/habits/", `{"title":""}`, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("blank habit status = %d, want 422", code)
	}
	if code := do(t, srv, http.MethodPost, "/habits/", `{`, nil); code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", code)
	}
}

func TestPeriodEndpoints(t *testing.T) {
	srv, _ := newServer(t)

	var view service.PeriodView
	if code := do(t, srv, http.MethodGet, "/periods/day/2025-03-10", "", &view); code != http.StatusOK {
		t.Fatalf("load status = %d", code)
	}
	if view.Day == nil || !view.IsCurrent {
		t.Errorf("view = %+v", view)
	}

	var items []models.Priority
	if code := do(t, srv, http.MethodPost, "/periods/day/2025-03-10/priorities", `{"action":"add","title":"Write"}`, &items); code != http.StatusOK {
		t.Fatalf("add status = %d", code)
	}
	if len(items) != 1 || items[0].Title != "Write" {
		t.Errorf("items = %+v", items)
	}

	if code := do(t, srv, http.MethodPost, "/periods/day/2025-03-09/priorities", `{"action":"add","title":"Late"}`, nil); code != http.StatusConflict {
		t.Errorf("unconfirmed past edit status = %d, want 409", code)
	}
	if code := do(t, srv, http.MethodPost, "/periods/day/2025-03-09/priorities?confirm=true", `{"action":"add","title":"Late"}`, nil); code != http.StatusOK {
		t.Errorf("confirmed past edit status = %d, want 200", code)
	}

	var imported map[string]int
	if code := do(t, srv, http.MethodPost, "/periods/day/2025-03-10/import", "", &imported); code != http.StatusOK || imported["imported"] != 1 {
		t.Errorf("import = %d, %v", code, imported)
	}

	var nav map[string]string
	if code := do(t, srv, http.MethodGet, "/periods/month/2025-03/navigate?dir=prev", "", &nav); code != http.StatusOK || nav["key"] != "2025-02" {
		t.Errorf("navigate = %d, %v", code, nav)
	}
	if code := do(t, srv, http.MethodGet, "/periods/month/2025-03/navigate?dir=next", "", nil); code != http.StatusUnprocessableEntity {
		t.Errorf("navigate into future status = %d, want 422", code)
	}
	if code := do(t, srv, http.MethodGet, "/periods/month/2025-03/navigate?dir=up", "", nil); code != http.StatusBadRequest {
		t.Errorf("bad direction status = %d, want 400", code)
	}
	if code := do(t, srv, http.MethodGet, "/periods/year/2025", "", nil); code != http.StatusNotFound {
		t.Errorf("unknown kind status = %d, want 404", code)
	}

	var status map[string]models.DayStatus
	if code := do(t, srv, http.MethodGet, "/months/2025-03/status", "", &status); code != http.StatusOK {
		t.Fatalf("month status code = %d", code)
	}
	if status["2025-03-10"] != (models.DayStatus{Done: 0, Total: 2}) || len(status) != 10 {
		t.Errorf("status = %v", status)
	}

	var week service.PeriodView
	if code := do(t, srv, http.MethodGet, "/periods/week/?date=2025-03-05", "", &week); code != http.StatusOK || week.Key != "2025-03-02" {
		t.Errorf("week by date = %d, %q", code, week.Key)
	}
	if code := do(t, srv, http.MethodGet, "/periods/week/2025-03-05", "", nil); code != http.StatusUnprocessableEntity {
		t.Errorf("mid-week key status = %d, want 422", code)
	}

	var today service.PeriodView
	if code := do(t, srv, http.MethodGet, "/periods/day/", "", &today); code != http.StatusOK || today.Key != "2025-03-10" {
		t.Errorf("default day = %d, %q; want the service clock's day 2025-03-10", code, today.Key)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	srv, _ := newServer(t)

	var settings models.Settings
	if code := do(t, srv, http.MethodPut, "/settings/week-start", `{"weekday":"mon","effective_from":"2025-03-10"}`, &settings); code != http.StatusOK {
		t.Fatalf("week-start status = %d", code)
	}
	if len(settings.WeekRules) != 1 || settings.WeekRules[0].Weekday != time.Monday {
		t.Errorf("settings = %+v", settings)
	}
	if code := do(t, srv, http.MethodPut, "/settings/week-start", `{"weekday":"funday"}`, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("bad weekday status = %d, want 422", code)
	}
	if code := do(t, srv, http.MethodPut, "/settings/timezone", `{"timezone":"Nowhere/Special"}`, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("bad timezone status = %d, want 422", code)
	}
	if code := do(t, srv, http.MethodPut, "/settings/day-times", `{"wake_time":"08:00","sleep_time":"10:00"}`, nil); code != http.StatusOK {
		t.Errorf("day-times status = %d", code)
	}

	var blocks []map[string]any
	if code := do(t, srv, http.MethodGet, "/days/2025-03-10/blocks", "", &blocks); code != http.StatusOK || len(blocks) != 2 {
		t.Errorf("blocks = %d, %d blocks", code, len(blocks))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.NotFound("x"), http.StatusNotFound},
		{apperrors.InvalidTransition("op", "no"), http.StatusUnprocessableEntity},
		{apperrors.NavigationRejected("no"), http.StatusUnprocessableEntity},
		{apperrors.ConfirmationRequired("op", "past"), http.StatusConflict},
		{apperrors.Persistence("op", errors.New("down")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
