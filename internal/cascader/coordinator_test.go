package cascader

import (
	"context"
	"testing"
	"time"
)

func TestCoordinatorBeginSupersedes(t *testing.T) {
	co := newCoordinator(0, 0)
	ctx1, gen1 := co.begin(context.Background())
	if !co.current(gen1) {
		t.Fatalf("fresh generation should be current")
	}
	ctx2, gen2 := co.begin(context.Background())
	if co.current(gen1) {
		t.Fatalf("superseded generation still current")
	}
	if !co.current(gen2) {
		t.Fatalf("new generation should be current")
	}
	// 旧操作的上下文被取消，新操作不受影响
	if ctx1.Err() != context.Canceled {
		t.Fatalf("old context err = %v, want Canceled", ctx1.Err())
	}
	if ctx2.Err() != nil {
		t.Fatalf("new context err = %v", ctx2.Err())
	}
}

func TestCoordinatorAbort(t *testing.T) {
	co := newCoordinator(0, 0)
	ctx, gen := co.begin(context.Background())
	co.abort()
	if ctx.Err() != context.Canceled {
		t.Fatalf("abort must cancel in-flight context")
	}
	if co.current(gen) {
		t.Fatalf("abort must invalidate issued generations")
	}
}

func TestCoordinatorClickCooldown(t *testing.T) {
	co := newCoordinator(300*time.Millisecond, 0)
	now := time.Unix(1000, 0)
	co.now = func() time.Time { return now }

	if !co.allowClick() {
		t.Fatalf("first click must pass")
	}
	now = now.Add(100 * time.Millisecond)
	if co.allowClick() {
		t.Fatalf("click inside cooldown must be dropped")
	}
	now = now.Add(300 * time.Millisecond)
	if !co.allowClick() {
		t.Fatalf("click after cooldown must pass")
	}
}

func TestCoordinatorDebounceLatestWins(t *testing.T) {
	co := newCoordinator(0, 0)
	var fns []func()
	co.afterFunc = func(d time.Duration, f func()) *time.Timer {
		fns = append(fns, f)
		tm := time.NewTimer(time.Hour)
		tm.Stop()
		return tm
	}

	var fired []uint64
	co.scheduleSearch(func(seq uint64) { fired = append(fired, seq) })
	co.scheduleSearch(func(seq uint64) { fired = append(fired, seq) })

	// 先触发被顶替的计时器：序号已过期，不得回调
	fns[0]()
	if len(fired) != 0 {
		t.Fatalf("stale debounce fired: %v", fired)
	}
	fns[1]()
	if len(fired) != 1 {
		t.Fatalf("latest debounce must fire exactly once, got %v", fired)
	}
	// 触发后再次过期检查
	if co.searchCurrent(fired[0]) != true {
		t.Fatalf("fired seq should still be current until next schedule")
	}
}
