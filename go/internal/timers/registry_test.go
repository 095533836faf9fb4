package timers_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/oralboard/go/internal/models"
	"github.com/mcdev12/oralboard/go/internal/timers"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newRegistry(t *testing.T) (*timers.Registry, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	return timers.NewRegistry(clock), clock
}

func TestRegistry_Start(t *testing.T) {
	t.Parallel()

	reg, _ := newRegistry(t)

	got, err := reg.Start("alice", 2, 420)
	if err != nil {
		t.Fatalf("reg.Start() error = %v, want nil", err)
	}

	want := &models.Timer{
		UserID:           "alice",
		CaseNumber:       2,
		DurationSeconds:  420,
		RemainingSeconds: 420,
		Status:           models.TimerStatusRunning,
		StartedAt:        epoch,
	}
	if diff := cmp.Diff(got, want, cmpopts.IgnoreFields(models.Timer{}, "ID")); diff != "" {
		t.Errorf("reg.Start() = %+v, want %+v\ndiff (-got +want):\n%v", got, want, diff)
	}
	if got.ID == uuid.Nil {
		t.Errorf("reg.Start() ID is zero")
	}
}

func TestRegistry_StartConflict(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)

	if _, err := reg.Start("alice", 1, 60); err != nil {
		t.Fatalf("first reg.Start() error = %v, want nil", err)
	}
	clock.Advance(30 * time.Second)

	_, err := reg.Start("alice", 1, 60)
	if !errors.Is(err, timers.ErrConflict) {
		t.Fatalf("second reg.Start() error = %v, want %v", err, timers.ErrConflict)
	}

	// other cases and users are independent
	if _, err := reg.Start("alice", 2, 60); err != nil {
		t.Errorf("reg.Start(alice, 2) error = %v, want nil", err)
	}
	if _, err := reg.Start("bob", 1, 60); err != nil {
		t.Errorf("reg.Start(bob, 1) error = %v, want nil", err)
	}
}

func TestRegistry_Remaining(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		duration      int
		elapsed       time.Duration
		wantRemaining int
		wantStatus    models.TimerStatus
	}{
		{"fresh", 300, 0, 300, models.TimerStatusRunning},
		{"partial second truncates", 5, 4500 * time.Millisecond, 1, models.TimerStatusRunning},
		{"one second", 10, time.Second, 9, models.TimerStatusRunning},
		{"exact end", 5, 5 * time.Second, 0, models.TimerStatusExpired},
		{"past end", 5, 6 * time.Second, 0, models.TimerStatusExpired},
		{"long past end", 420, time.Hour, 0, models.TimerStatusExpired},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			reg, clock := newRegistry(t)
			if _, err := reg.Start("alice", 1, c.duration); err != nil {
				t.Fatalf("reg.Start() error = %v, want nil", err)
			}
			clock.Advance(c.elapsed)

			got, err := reg.Get("alice", 1)
			if err != nil {
				t.Fatalf("reg.Get() error = %v, want nil", err)
			}
			if got.RemainingSeconds != c.wantRemaining {
				t.Errorf("reg.Get().RemainingSeconds = %d, want %d", got.RemainingSeconds, c.wantRemaining)
			}
			if got.Status != c.wantStatus {
				t.Errorf("reg.Get().Status = %q, want %q", got.Status, c.wantStatus)
			}
		})
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	t.Parallel()

	reg, _ := newRegistry(t)

	if _, err := reg.Get("alice", 1); !errors.Is(err, timers.ErrNotFound) {
		t.Errorf("reg.Get() error = %v, want %v", err, timers.ErrNotFound)
	}
}

func TestRegistry_Cancel(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)

	if _, ok := reg.Cancel("nobody", 3); ok {
		t.Errorf("reg.Cancel() on missing timer = true, want false")
	}

	if _, err := reg.Start("alice", 1, 60); err != nil {
		t.Fatalf("reg.Start() error = %v, want nil", err)
	}
	clock.Advance(20 * time.Second)

	canceled, ok := reg.Cancel("alice", 1)
	if !ok {
		t.Fatalf("reg.Cancel() = false, want true")
	}
	if canceled.Status != models.TimerStatusCanceled || canceled.RemainingSeconds != 40 {
		t.Errorf("reg.Cancel() = %s/%d, want canceled/40", canceled.Status, canceled.RemainingSeconds)
	}

	// remaining stays frozen and the timer never expires afterwards
	clock.Advance(time.Hour)
	got, err := reg.Get("alice", 1)
	if err != nil {
		t.Fatalf("reg.Get() error = %v, want nil", err)
	}
	if got.Status != models.TimerStatusCanceled || got.RemainingSeconds != 40 {
		t.Errorf("reg.Get() = %s/%d, want canceled/40", got.Status, got.RemainingSeconds)
	}
	if expired := reg.DrainExpired(); len(expired) != 0 {
		t.Errorf("reg.DrainExpired() = %d timers, want 0", len(expired))
	}

	// a second cancel is a no-op
	if _, ok := reg.Cancel("alice", 1); ok {
		t.Errorf("second reg.Cancel() = true, want false")
	}
}

func TestRegistry_CancelExpired(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)

	if _, err := reg.Start("alice", 1, 5); err != nil {
		t.Fatalf("reg.Start() error = %v, want nil", err)
	}
	clock.Advance(6 * time.Second)

	// no read happened since expiry; cancel must still see it as expired
	if _, ok := reg.Cancel("alice", 1); ok {
		t.Errorf("reg.Cancel() on expired timer = true, want false")
	}

	got, err := reg.Get("alice", 1)
	if err != nil {
		t.Fatalf("reg.Get() error = %v, want nil", err)
	}
	if got.Status != models.TimerStatusExpired || got.RemainingSeconds != 0 {
		t.Errorf("reg.Get() = %s/%d, want expired/0", got.Status, got.RemainingSeconds)
	}
}

func TestRegistry_Restart(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)

	first, err := reg.Start("alice", 1, 5)
	if err != nil {
		t.Fatalf("reg.Start() error = %v, want nil", err)
	}
	clock.Advance(6 * time.Second)

	second, err := reg.Start("alice", 1, 60)
	if err != nil {
		t.Fatalf("reg.Start() after expiry error = %v, want nil", err)
	}
	if second.ID == first.ID {
		t.Errorf("restart reused timer ID %s", first.ID)
	}
	if !second.StartedAt.Equal(epoch.Add(6 * time.Second)) {
		t.Errorf("restart StartedAt = %v, want %v", second.StartedAt, epoch.Add(6*time.Second))
	}

	if _, ok := reg.Cancel("alice", 1); !ok {
		t.Fatalf("reg.Cancel() = false, want true")
	}
	if _, err := reg.Start("alice", 1, 60); err != nil {
		t.Errorf("reg.Start() after cancel error = %v, want nil", err)
	}
}

func TestRegistry_TickAndDrain(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)

	for caseNumber, duration := range map[int]int{1: 5, 2: 10, 3: 60} {
		if _, err := reg.Start("alice", caseNumber, duration); err != nil {
			t.Fatalf("reg.Start(%d) error = %v, want nil", caseNumber, err)
		}
	}

	clock.Advance(7 * time.Second)
	expired := reg.Tick()
	if len(expired) != 1 || expired[0].CaseNumber != 1 {
		t.Fatalf("reg.Tick() = %+v, want case 1 only", expired)
	}

	clock.Advance(5 * time.Second)
	if _, err := reg.Get("alice", 3); err != nil {
		t.Fatalf("reg.Get() error = %v, want nil", err)
	}

	drained := reg.DrainExpired()
	var gotCases []int
	for _, timer := range drained {
		gotCases = append(gotCases, timer.CaseNumber)
	}
	if diff := cmp.Diff(gotCases, []int{1, 2}); diff != "" {
		t.Errorf("reg.DrainExpired() cases = %v, want [1 2]\ndiff (-got +want):\n%v", gotCases, diff)
	}
	if again := reg.DrainExpired(); len(again) != 0 {
		t.Errorf("second reg.DrainExpired() = %d timers, want 0", len(again))
	}
}

func TestRegistry_List(t *testing.T) {
	t.Parallel()

	reg, clock := newRegistry(t)

	for _, caseNumber := range []int{3, 1, 4} {
		if _, err := reg.Start("alice", caseNumber, 10); err != nil {
			t.Fatalf("reg.Start(%d) error = %v, want nil", caseNumber, err)
		}
	}
	if _, err := reg.Start("bob", 2, 10); err != nil {
		t.Fatalf("reg.Start(bob) error = %v, want nil", err)
	}
	clock.Advance(3 * time.Second)

	got := reg.List("alice")
	var cases []int
	for _, timer := range got {
		cases = append(cases, timer.CaseNumber)
		if timer.RemainingSeconds != 7 {
			t.Errorf("case %d RemainingSeconds = %d, want 7", timer.CaseNumber, timer.RemainingSeconds)
		}
	}
	if diff := cmp.Diff(cases, []int{1, 3, 4}); diff != "" {
		t.Errorf("reg.List(alice) cases = %v, want [1 3 4]\ndiff (-got +want):\n%v", cases, diff)
	}

	if got := reg.List("carol"); len(got) != 0 {
		t.Errorf("reg.List(carol) = %d timers, want 0", len(got))
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	t.Parallel()

	reg, _ := newRegistry(t)

	timer, err := reg.Start("alice", 1, 60)
	if err != nil {
		t.Fatalf("reg.Start() error = %v, want nil", err)
	}
	timer.Status = models.TimerStatusCanceled
	timer.RemainingSeconds = 1

	got, err := reg.Get("alice", 1)
	if err != nil {
		t.Fatalf("reg.Get() error = %v, want nil", err)
	}
	if got.Status != models.TimerStatusRunning || got.RemainingSeconds != 60 {
		t.Errorf("reg.Get() = %s/%d, want running/60", got.Status, got.RemainingSeconds)
	}
}

func TestRegistry_Restore(t *testing.T) {
	t.Parallel()

	reg, _ := newRegistry(t)

	persisted := []*models.Timer{
		{UserID: "alice", CaseNumber: 1, DurationSeconds: 60, RemainingSeconds: 60, Status: models.TimerStatusRunning, StartedAt: epoch.Add(-30 * time.Second)},
		{UserID: "alice", CaseNumber: 2, DurationSeconds: 10, RemainingSeconds: 10, Status: models.TimerStatusRunning, StartedAt: epoch.Add(-time.Minute)},
		{UserID: "alice", CaseNumber: 3, DurationSeconds: 60, RemainingSeconds: 12, Status: models.TimerStatusCanceled, StartedAt: epoch.Add(-time.Hour)},
		{UserID: "alice", CaseNumber: 9, DurationSeconds: 60, RemainingSeconds: 60, Status: models.TimerStatusRunning, StartedAt: epoch},
		{UserID: "alice", CaseNumber: 4, DurationSeconds: 60, RemainingSeconds: 60, Status: "paused", StartedAt: epoch},
		nil,
	}

	if got := reg.Restore(persisted); got != 3 {
		t.Errorf("reg.Restore() = %d, want 3", got)
	}

	expired := reg.Tick()
	if len(expired) != 1 || expired[0].CaseNumber != 2 {
		t.Errorf("reg.Tick() after restore = %+v, want case 2 only", expired)
	}

	type view struct {
		Case      int
		Status    models.TimerStatus
		Remaining int
	}
	var got []view
	for _, timer := range reg.List("alice") {
		got = append(got, view{timer.CaseNumber, timer.Status, timer.RemainingSeconds})
	}
	want := []view{
		{1, models.TimerStatusRunning, 30},
		{2, models.TimerStatusExpired, 0},
		{3, models.TimerStatusCanceled, 12},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("reg.List() after restore = %+v, want %+v\ndiff (-got +want):\n%v", got, want, diff)
	}
}
