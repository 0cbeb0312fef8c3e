package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/winappdriver"
	"github.com/devicelab-dev/shift-runner/pkg/winappdriver/wadtest"
)

// openSession starts a fake server with elems and connects to it. The
// caller closes the server.
func openSession(t require.TestingT, elems ...*wadtest.Element) (*wadtest.Server, *winappdriver.Client) {
	srv := wadtest.NewServer()
	srv.SetApp(elems...)

	c := winappdriver.NewClient(srv.URL)
	require.NoError(t, c.Connect(context.Background(), winappdriver.LaunchCapabilities("shift.exe")))
	return srv, c
}

func startSession(t *testing.T, elems ...*wadtest.Element) (*wadtest.Server, *winappdriver.Client) {
	t.Helper()
	srv, c := openSession(t, elems...)
	t.Cleanup(srv.Close)
	return srv, c
}

func fastWaiter(d Driver) *Waiter {
	return NewWaiter(d, 300*time.Millisecond, 10*time.Second).WithInterval(10 * time.Millisecond)
}

func countEvents(events []string, prefix string) int {
	n := 0
	for _, e := range events {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

func TestWaitVisible_BecomesVisible(t *testing.T) {
	btn := &wadtest.Element{Name: "Go to next step", Hidden: true}
	srv, c := startSession(t, btn)

	go func() {
		time.Sleep(50 * time.Millisecond)
		srv.Update(func() { btn.Hidden = false })
	}()

	w := NewWaiter(c, 2*time.Second, 0).WithInterval(10 * time.Millisecond)
	require.NoError(t, w.WaitVisible(context.Background(), Find(ByName("Go to next step"))))
}

func TestWaitVisible_Timeout(t *testing.T) {
	_, c := startSession(t, &wadtest.Element{Name: "Next", Hidden: true})

	start := time.Now()
	err := fastWaiter(c).WaitVisible(context.Background(), Find(ByName("Next")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrWaitTimeout), err)
	assert.Equal(t, core.ErrCategoryTimeout, core.CategoryOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWaitVisible_MissingElementTimesOut(t *testing.T) {
	_, c := startSession(t)

	err := fastWaiter(c).WaitVisible(context.Background(), Find(ByName("Nope")))
	assert.True(t, errors.Is(err, core.ErrWaitTimeout), err)
	assert.True(t, winappdriver.IsNotFound(errors.Unwrap(err)), "last lookup error kept as cause")
}

func TestWaitVisible_RetriesTransientFaultOnce(t *testing.T) {
	btn := &wadtest.Element{Name: "Save", Faults: 1}
	srv, c := startSession(t, btn)

	require.NoError(t, fastWaiter(c).WaitVisible(context.Background(), Find(ByName("Save"))))
	assert.Equal(t, 1, countEvents(srv.Events(), "fault Save"))
}

func TestWaitVisible_SecondFaultPropagates(t *testing.T) {
	btn := &wadtest.Element{Name: "Save", Faults: 2}
	srv, c := startSession(t, btn)

	err := fastWaiter(c).WaitVisible(context.Background(), Find(ByName("Save")))
	require.Error(t, err)
	var werr *winappdriver.Error
	require.True(t, errors.As(err, &werr), err)
	assert.Equal(t, winappdriver.KindUnknown, werr.Kind)
	assert.Equal(t, 2, countEvents(srv.Events(), "fault Save"))
}

func TestWaitClickable_Disabled(t *testing.T) {
	_, c := startSession(t, &wadtest.Element{Name: "Next", Disabled: true})

	err := fastWaiter(c).WaitClickable(context.Background(), Find(ByName("Next")))
	assert.True(t, errors.Is(err, core.ErrWaitTimeout), err)
}

func TestClick(t *testing.T) {
	btn := &wadtest.Element{Name: "Back"}
	srv, c := startSession(t, btn)

	require.NoError(t, fastWaiter(c).Click(context.Background(), Find(ByName("Back"))))
	srv.Update(func() { assert.Equal(t, 1, btn.Clicks) })
}

func TestClick_NotVisible(t *testing.T) {
	btn := &wadtest.Element{Name: "Back", Hidden: true}
	srv, c := startSession(t, btn)

	err := fastWaiter(c).Click(context.Background(), Find(ByName("Back")))
	require.Error(t, err)
	srv.Update(func() { assert.Equal(t, 0, btn.Clicks) })
}

func TestType(t *testing.T) {
	box := &wadtest.Element{AutomationID: "omnibox-textbox", Text: "old"}
	srv, c := startSession(t, box)

	require.NoError(t, fastWaiter(c).Type(context.Background(), Find(ByAccessibilityID("omnibox-textbox")), "https://www.google.com"))
	srv.Update(func() {
		assert.Equal(t, "https://www.google.com", box.Text)
	})
	assert.Equal(t, 1, countEvents(srv.Events(), "clear #omnibox-textbox"))
}

func TestChildElement(t *testing.T) {
	bar := &wadtest.Element{
		Name: "Bookmarks",
		Children: []*wadtest.Element{
			{Name: "Redbrick"},
		},
	}
	// Same name outside the bar must not match the scoped lookup.
	other := &wadtest.Element{Name: "Other", Children: []*wadtest.Element{{Name: "Elsewhere"}}}
	_, c := startSession(t, other, bar)

	w := fastWaiter(c)
	barEl := Find(ByName("Bookmarks"))
	assert.True(t, w.IsPresent(context.Background(), barEl.Find(ByName("Redbrick"))))
	assert.False(t, w.IsPresent(context.Background(), barEl.Find(ByName("Elsewhere"))))

	ids, err := barEl.Find(ByXPath(".//*")).ResolveAll(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Equal(t, `Bookmarks > name="Redbrick"`, barEl.Named("Bookmarks").Find(ByName("Redbrick")).String())
}

func TestIsPresent(t *testing.T) {
	tests := []struct {
		name string
		elem *wadtest.Element
		want bool
	}{
		{"visible", &wadtest.Element{Name: "X"}, true},
		{"hidden", &wadtest.Element{Name: "X", Hidden: true}, false},
		{"stale", &wadtest.Element{Name: "X", Stale: true}, false},
		{"missing", &wadtest.Element{Name: "Y"}, false},
		{"faulting", &wadtest.Element{Name: "X", Faults: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := startSession(t, tt.elem)
			assert.Equal(t, tt.want, fastWaiter(c).IsPresent(context.Background(), Find(ByName("X"))))
		})
	}
}

// IsPresent is false for every way an element can be absent and true only
// for a displayed element.
func TestIsPresent_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		exists := rapid.Bool().Draw(rt, "exists")
		hidden := rapid.Bool().Draw(rt, "hidden")
		stale := rapid.Bool().Draw(rt, "stale")

		var elems []*wadtest.Element
		if exists {
			elems = append(elems, &wadtest.Element{Name: "Target", Hidden: hidden, Stale: stale})
		}
		srv, c := openSession(rt, elems...)
		defer srv.Close()

		got := fastWaiter(c).IsPresent(context.Background(), Find(ByName("Target")))
		want := exists && !hidden && !stale
		if got != want {
			rt.Fatalf("IsPresent = %v, want %v (exists=%v hidden=%v stale=%v)", got, want, exists, hidden, stale)
		}
	})
}

func openShiftSweep(maxSteps int) Sweep {
	return Sweep{
		Candidates: ByXPath("//*[contains(@Name, 'Open Shift')]"),
		Match:      func(name string) bool { return strings.Contains(name, "Open Shift") },
		StartY:     -100,
		StepX:      -30,
		MaxSteps:   maxSteps,
		StepDelay:  time.Millisecond,
	}
}

func TestSweepFind(t *testing.T) {
	btn := &wadtest.Element{Name: "Open Shift", Hidden: true}
	srv, c := startSession(t, btn)
	srv.Update(func() {
		srv.OnMove = func(x, y, moves int) {
			if x <= -90 {
				btn.Hidden = false
			}
		}
	})

	w := fastWaiter(c)
	id, err := w.SweepFind(context.Background(), openShiftSweep(100))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	x, y := srv.Pointer()
	assert.Equal(t, -90, x)
	assert.Equal(t, -100, y)

	events := srv.Events()
	var timeouts []string
	for _, e := range events {
		if strings.HasPrefix(e, "timeouts") {
			timeouts = append(timeouts, e)
		}
	}
	require.Len(t, timeouts, 2)
	assert.True(t, strings.HasSuffix(timeouts[0], " 0"), timeouts)
	assert.True(t, strings.HasSuffix(timeouts[1], " 10000"), timeouts)
}

func TestSweepFind_NotFound(t *testing.T) {
	_, c := startSession(t, &wadtest.Element{Name: "Open Shift", Hidden: true})

	_, err := fastWaiter(c).SweepFind(context.Background(), openShiftSweep(5))
	assert.True(t, errors.Is(err, core.ErrElementNotFound), err)
}

func TestSweepFind_Canceled(t *testing.T) {
	_, c := startSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := openShiftSweep(100)
	s.StepDelay = time.Hour
	_, err := fastWaiter(c).SweepFind(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
}

// The sweep never queries more than MaxSteps times and finds the target
// exactly when it appears within the budget.
func TestSweepFind_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxSteps := rapid.IntRange(0, 15).Draw(rt, "maxSteps")
		appearAt := rapid.IntRange(1, 25).Draw(rt, "appearAtMove")

		btn := &wadtest.Element{Name: "Open Shift", Hidden: true}
		srv, c := openSession(rt, btn)
		defer srv.Close()
		srv.Update(func() {
			srv.OnMove = func(_, _, moves int) {
				if moves >= appearAt {
					btn.Hidden = false
				}
			}
		})

		_, err := fastWaiter(c).SweepFind(context.Background(), openShiftSweep(maxSteps))

		queries := countEvents(srv.Events(), "find ")
		if queries > maxSteps {
			rt.Fatalf("%d queries for maxSteps %d", queries, maxSteps)
		}
		// Query i runs after i+1 moves.
		wantFound := appearAt-1 < maxSteps
		if (err == nil) != wantFound {
			rt.Fatalf("found=%v, want %v (err=%v)", err == nil, wantFound, err)
		}
	})
}

func TestAttempt(t *testing.T) {
	var order []string
	fail := func(name string) Strategy {
		return Strategy{Name: name, Run: func(context.Context) error {
			order = append(order, name)
			return errors.New(name + " broke")
		}}
	}
	ok := func(name string) Strategy {
		return Strategy{Name: name, Run: func(context.Context) error {
			order = append(order, name)
			return nil
		}}
	}

	require.NoError(t, Attempt(context.Background(), fail("primary"), ok("fallback1"), ok("fallback2")))
	assert.Equal(t, []string{"primary", "fallback1"}, order)

	order = nil
	err := Attempt(context.Background(), fail("primary"), fail("fallback1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary: primary broke")
	assert.Contains(t, err.Error(), "fallback1: fallback1 broke")
	assert.Equal(t, []string{"primary", "fallback1"}, order)
}

func TestAttempt_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Attempt(ctx, Strategy{Name: "primary", Run: func(context.Context) error {
		called = true
		return nil
	}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestPause(t *testing.T) {
	require.NoError(t, Pause(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, Pause(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHoverClick(t *testing.T) {
	btn := &wadtest.Element{Name: "Quick Settings"}
	srv, c := startSession(t, btn)

	require.NoError(t, fastWaiter(c).HoverClick(context.Background(), Find(ByName("Quick Settings"))))
	events := srv.Events()
	assert.Equal(t, 1, countEvents(events, "moveto Quick Settings"))
	assert.Equal(t, 1, countEvents(events, "click Quick Settings"))
}
