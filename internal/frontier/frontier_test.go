package frontier_test

import (
	"net/url"
	"testing"

	"github.com/foofork/riptide/internal/frontier"
	"github.com/foofork/riptide/internal/model"
)

func mustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url %q: %v", raw, err)
	}
	return *u
}

func noLimits() model.Budget { return model.Budget{} }

func TestFrontier_BFSOrdering(t *testing.T) {
	f := frontier.New(model.StrategyBFS, model.HostRules{}, noLimits(), "", 0)

	a := mustURL(t, "https://example.com/a")
	b := mustURL(t, "https://example.com/b")
	c := mustURL(t, "https://example.com/c")

	if outcome, err := f.Push(a, 0, model.DiscoverySeed, ""); outcome != frontier.Accepted || err != nil {
		t.Fatalf("push a: %v %v", outcome, err)
	}
	if outcome, _ := f.Push(b, 1, model.DiscoveryLink, ""); outcome != frontier.Accepted {
		t.Fatalf("push b: %v", outcome)
	}
	if outcome, _ := f.Push(c, 1, model.DiscoveryLink, ""); outcome != frontier.Accepted {
		t.Fatalf("push c: %v", outcome)
	}

	req, ok := f.Next()
	if !ok || req.URL().Path != "/a" {
		t.Fatalf("expected a first, got %+v ok=%v", req, ok)
	}
	req, ok = f.Next()
	if !ok || req.URL().Path != "/b" {
		t.Fatalf("expected b second (FIFO), got %+v", req)
	}
	req, ok = f.Next()
	if !ok || req.URL().Path != "/c" {
		t.Fatalf("expected c third, got %+v", req)
	}
	if _, ok := f.Next(); ok {
		t.Fatal("expected frontier to be empty")
	}
}

func TestFrontier_DFSOrdering(t *testing.T) {
	f := frontier.New(model.StrategyDFS, model.HostRules{}, noLimits(), "", 0)

	a := mustURL(t, "https://example.com/a")
	b := mustURL(t, "https://example.com/b")
	c := mustURL(t, "https://example.com/c")

	f.Push(a, 0, model.DiscoverySeed, "")
	f.Push(b, 1, model.DiscoveryLink, "")
	f.Push(c, 1, model.DiscoveryLink, "")

	req, ok := f.Next()
	if !ok || req.URL().Path != "/c" {
		t.Fatalf("expected c first (LIFO), got %+v", req)
	}
	req, ok = f.Next()
	if !ok || req.URL().Path != "/b" {
		t.Fatalf("expected b second, got %+v", req)
	}
}

func TestFrontier_DedupAfterCanonicalization(t *testing.T) {
	f := frontier.New(model.StrategyBFS, model.HostRules{}, noLimits(), "", 0)

	u1 := mustURL(t, "https://Example.com:443/a/")
	u2 := mustURL(t, "https://example.com/a")

	outcome1, _ := f.Push(u1, 0, model.DiscoverySeed, "")
	outcome2, _ := f.Push(u2, 0, model.DiscoverySeed, "")

	if outcome1 != frontier.Accepted {
		t.Fatalf("first push should be accepted, got %v", outcome1)
	}
	if outcome2 != frontier.RejectedDuplicate {
		t.Fatalf("second push should be rejected as duplicate after canonicalisation, got %v", outcome2)
	}
	if f.Len() != 1 {
		t.Fatalf("expected exactly one queued URL, got %d", f.Len())
	}
}

func TestFrontier_HostScopeRejection(t *testing.T) {
	rules := model.HostRules{AllowedHosts: map[string]struct{}{"allowed.com": {}}}
	f := frontier.New(model.StrategyBFS, rules, noLimits(), "", 0)

	allowed := mustURL(t, "https://allowed.com/a")
	other := mustURL(t, "https://other.com/a")

	if outcome, _ := f.Push(allowed, 0, model.DiscoverySeed, ""); outcome != frontier.Accepted {
		t.Fatalf("in-scope host should be accepted, got %v", outcome)
	}
	if outcome, _ := f.Push(other, 0, model.DiscoverySeed, ""); outcome != frontier.RejectedOutOfScope {
		t.Fatalf("out-of-scope host should be rejected, got %v", outcome)
	}
}

func TestFrontier_CapacityRejection(t *testing.T) {
	f := frontier.New(model.StrategyBFS, model.HostRules{}, noLimits(), "", 1)

	a := mustURL(t, "https://example.com/a")
	b := mustURL(t, "https://example.com/b")

	if outcome, _ := f.Push(a, 0, model.DiscoverySeed, ""); outcome != frontier.Accepted {
		t.Fatalf("first push should be accepted, got %v", outcome)
	}
	outcome, err := f.Push(b, 0, model.DiscoverySeed, "")
	if outcome != frontier.RejectedFull {
		t.Fatalf("second push should be rejected full, got %v", outcome)
	}
	if err == nil {
		t.Fatal("expected FrontierFull (ResourceExhausted) error")
	}
}

func TestFrontier_BestFirstPrioritisesQueryMatch(t *testing.T) {
	f := frontier.New(model.StrategyBestFirst, model.HostRules{}, noLimits(), "golang concurrency", 0)

	relevant := mustURL(t, "https://example.com/golang-concurrency-patterns")
	irrelevant := mustURL(t, "https://example.com/unrelated-topic")

	f.Push(irrelevant, 0, model.DiscoverySeed, "some unrelated anchor text")
	f.Push(relevant, 0, model.DiscoverySeed, "golang concurrency patterns explained")

	req, ok := f.Next()
	if !ok {
		t.Fatal("expected a URL")
	}
	if req.URL().Path != "/golang-concurrency-patterns" {
		t.Fatalf("expected the query-relevant URL to dequeue first, got %s", req.URL().Path)
	}
}

func TestFrontier_MarkDoneAndStats(t *testing.T) {
	f := frontier.New(model.StrategyBFS, model.HostRules{}, noLimits(), "", 0)
	f.MarkDone(frontier.OutcomeSuccess)
	f.MarkDone(frontier.OutcomeFailed)
	f.MarkDone(frontier.OutcomeFiltered)

	done, failed, filtered := f.Stats()
	if done != 1 || failed != 1 || filtered != 1 {
		t.Fatalf("unexpected stats: done=%d failed=%d filtered=%d", done, failed, filtered)
	}
}

func TestFrontier_BudgetExhaustion(t *testing.T) {
	f := frontier.New(model.StrategyBFS, model.HostRules{}, model.Budget{MaxPages: 1}, "", 0)
	f.Budget().RecordPage(100)

	u := mustURL(t, "https://example.com/a")
	outcome, _ := f.Push(u, 0, model.DiscoverySeed, "")
	if outcome != frontier.RejectedBudget {
		t.Fatalf("expected budget rejection once max pages consumed, got %v", outcome)
	}
	if reason, stop := f.ShouldStop(); !stop || reason != "max_pages" {
		t.Fatalf("expected ShouldStop to report max_pages, got reason=%q stop=%v", reason, stop)
	}
}

func TestAdaptiveStop_QualityFloor(t *testing.T) {
	stop := frontier.NewAdaptiveStop(5, 50, 0.2)
	for i := 0; i < 5; i++ {
		stop.RecordQuality(10)
	}
	reason, shouldStop := stop.ShouldStop()
	if !shouldStop || reason != "quality_floor" {
		t.Fatalf("expected quality_floor stop, got reason=%q stop=%v", reason, shouldStop)
	}
}

func TestAdaptiveStop_DoesNotStopBeforeWindowFills(t *testing.T) {
	stop := frontier.NewAdaptiveStop(5, 50, 0.2)
	stop.RecordQuality(0)
	if _, shouldStop := stop.ShouldStop(); shouldStop {
		t.Fatal("should not stop before the window has filled")
	}
}
