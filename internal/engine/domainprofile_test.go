package engine_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/foofork/riptide/internal/engine"
	"github.com/foofork/riptide/internal/model"
)

func TestDomainProfileStore_MissFallsThroughToFreshDecide(t *testing.T) {
	store := engine.NewDomainProfileStore()
	g := engine.NewGate()

	u, _ := url.Parse("https://example.com/article")
	body := `<html><head><script>window.__STATE__={"page":1,"items":[],"flags":{"hydrate":true}};</script></head><body><div class="wrapper"><div class="inner"><p>hi</p></div></div></body></html>`
	fr := model.NewFetchResult(200, nil, []byte(body), *u, time.Millisecond, false, time.Now())

	decision, _ := g.DecideWithProfile(fr, model.EngineFlags{UseVisibleTextDensity: true}, "example.com", store, time.Now())

	if decision.Engine() != model.EngineHeadless {
		t.Fatalf("expected a miss to fall through to the ordinary low-density decision, got %v", decision.Engine())
	}
}

func TestDomainProfileStore_ConfidentBaselineWarmStarts(t *testing.T) {
	store := engine.NewDomainProfileStore()
	now := time.Now()

	for i := 0; i < 10; i++ {
		store.Record("spa.example.com", engine.DensityLow-0.01, true, now)
	}

	g := engine.NewGate()
	u, _ := url.Parse("https://spa.example.com/page")
	fr := model.NewFetchResult(200, nil, []byte("<html><body><article><p>this looks like a full article with plenty of text</p></article></body></html>"), *u, time.Millisecond, false, now)

	decision, _ := g.DecideWithProfile(fr, model.EngineFlags{UseVisibleTextDensity: true}, "spa.example.com", store, now)

	if decision.Engine() != model.EngineHeadless {
		t.Fatalf("expected confident low-density baseline to warm-start to Headless despite high-density body, got %v", decision.Engine())
	}
	if decision.Rationale() != "domain-profile-warmstart" {
		t.Fatalf("expected warm-start rationale, got %q", decision.Rationale())
	}
}

func TestDomainProfileStore_ExpiredEntryIsNotServed(t *testing.T) {
	store := engine.NewDomainProfileStore()
	past := time.Now().Add(-2 * engine.DomainProfileTTL)
	for i := 0; i < 10; i++ {
		store.Record("stale.example.com", engine.DensityLow-0.01, true, past)
	}

	g := engine.NewGate()
	u, _ := url.Parse("https://stale.example.com/page")
	fr := model.NewFetchResult(200, nil, []byte("<html><body><div id=\"root\"></div></body></html>"), *u, time.Millisecond, false, time.Now())

	decision, _ := g.DecideWithProfile(fr, model.EngineFlags{UseVisibleTextDensity: true}, "stale.example.com", store, time.Now())

	if decision.Rationale() == "domain-profile-warmstart" {
		t.Fatal("expected expired profile not to be served")
	}
}
