package progress

import (
	"sync"
	"testing"

	"github.com/me/shennong/pkg/model"
)

func TestAggregator_RejectsSmallerLaterSample(t *testing.T) {
	a := NewAggregator()

	if !a.Observe(model.ProgressSample{Key: "k", BytesLoaded: 10, BytesTotal: 100}) {
		t.Fatal("first sample should be stored")
	}
	if a.Observe(model.ProgressSample{Key: "k", BytesLoaded: 5, BytesTotal: 100}) {
		t.Error("smaller sample should be discarded")
	}

	got, ok := a.Get("k")
	if !ok {
		t.Fatal("expected entry for k")
	}
	if got.BytesLoaded != 10 || got.BytesTotal != 100 {
		t.Errorf("stored = %+v, want loaded=10 total=100", got)
	}
}

func TestAggregator_EqualSampleIsDiscarded(t *testing.T) {
	a := NewAggregator()
	a.Observe(model.ProgressSample{Key: "k", BytesLoaded: 10, BytesTotal: 100})
	if a.Observe(model.ProgressSample{Key: "k", BytesLoaded: 10, BytesTotal: 200}) {
		t.Error("equal loaded bytes should not replace the entry")
	}
	if got, _ := a.Get("k"); got.BytesTotal != 100 {
		t.Errorf("BytesTotal = %d, want 100", got.BytesTotal)
	}
}

func TestAggregator_KeysAreIndependent(t *testing.T) {
	a := NewAggregator()
	a.Observe(model.ProgressSample{Key: "b.wav", BytesLoaded: 50, BytesTotal: 100})
	a.Observe(model.ProgressSample{Key: "a.wav", BytesLoaded: 1, BytesTotal: 100})

	snap := a.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot length = %d, want 2", len(snap))
	}
	if snap[0].Key != "a.wav" || snap[1].Key != "b.wav" {
		t.Errorf("Snapshot order = %s, %s", snap[0].Key, snap[1].Key)
	}

	overall := a.Overall()
	if overall.BytesLoaded != 51 || overall.BytesTotal != 200 {
		t.Errorf("Overall = %+v", overall)
	}

	a.Reset()
	if a.Len() != 0 {
		t.Errorf("Len after Reset = %d", a.Len())
	}
}

func TestAggregator_ConcurrentObserveIsMonotonic(t *testing.T) {
	a := NewAggregator()
	var wg sync.WaitGroup
	for i := int64(0); i <= 100; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			a.Observe(model.ProgressSample{Key: "k", BytesLoaded: n, BytesTotal: 100})
		}(i)
	}
	wg.Wait()

	if got, _ := a.Get("k"); got.BytesLoaded != 100 {
		t.Errorf("BytesLoaded = %d, want 100", got.BytesLoaded)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name   string
		loaded int64
		total  int64
		want   int
	}{
		{"zero total", 0, 0, 100},
		{"zero total with bytes", 42, 0, 100},
		{"negative total", 1, -1, 100},
		{"start", 0, 100, 0},
		{"floors", 999, 1000, 99},
		{"complete", 1000, 1000, 100},
		{"large file", 25 << 20, 50 << 20, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percent(model.ProgressSample{Key: "k", BytesLoaded: tt.loaded, BytesTotal: tt.total})
			if got != tt.want {
				t.Errorf("Percent(%d/%d) = %d, want %d", tt.loaded, tt.total, got, tt.want)
			}
		})
	}
}
