//go:build test

package mem

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mariohealth/marioserve/pkg/async"
	"github.com/mariohealth/marioserve/pkg/dictionary"
	"github.com/mariohealth/marioserve/pkg/engine"
	"github.com/mariohealth/marioserve/pkg/rank"
	"github.com/mariohealth/marioserve/pkg/source"
	"github.com/mariohealth/marioserve/pkg/suggest"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

var specialties = []string{
	"Cardiology", "Dermatology", "Orthopedic Surgery", "Pediatrics",
	"Neurology", "Oncology", "Ophthalmology", "Psychiatry",
}

var keystrokes = [][]string{
	{"c", "ca", "car", "card", "cardi", "cardio"},
	{"d", "de", "der", "derm", "derma"},
	{"o", "or", "ort", "orth", "ortho", "orthop"},
	{"m", "mr", "mri", "mri ", "mri s", "mri sc"},
	{"l", "li", "lip", "lipi", "lipit", "lipito", "lipitor"},
	{"d", "dr", "dr.", "dr. ", "dr. s", "dr. sa"},
}

// generatedSource serves a synthetic snapshot of n providers
type generatedSource struct{ n int }

func (g generatedSource) Name() string { return "generated" }

func (g generatedSource) Fetch(ctx context.Context) (*source.Snapshot, error) {
	snap := &source.Snapshot{Version: "soak", FetchedAt: time.Now()}
	for _, s := range specialties {
		snap.Terms = append(snap.Terms, dictionary.Term{Text: s, Category: dictionary.CategorySpecialty})
	}
	for i := range g.n {
		spec := specialties[i%len(specialties)]
		snap.Terms = append(snap.Terms, dictionary.Term{
			ID:       fmt.Sprintf("doctor-%d", i),
			Text:     fmt.Sprintf("Dr. Sample %d", i),
			Category: dictionary.CategoryProvider,
			Keywords: []string{spec},
			Provider: &dictionary.ProviderInfo{
				Specialty: spec,
				Price:     float64(100 + i%400),
				Rating:    3 + float64(i%20)/10,
				Distance:  float64(i % 30),
				Network:   dictionary.NetworkIn,
			},
		})
	}
	snap.Terms = append(snap.Terms,
		dictionary.Term{Text: "MRI Scan", Category: dictionary.CategoryProcedure, Procedure: &dictionary.ProcedureInfo{Price: 450}},
		dictionary.Term{Text: "Lipitor 20 mg", Category: dictionary.CategoryMedication, Medication: &dictionary.MedicationInfo{CashPrice: 14}},
	)
	snap.Candidates = rank.FromTerms(snap.Terms)
	return snap, nil
}

func newEngine(t *testing.T, n int) *engine.Engine {
	t.Helper()
	eng, err := engine.New(generatedSource{n: n}, engine.DefaultOptions())
	if err != nil {
		t.Fatalf("engine creation failed: %v", err)
	}
	if err := eng.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh failed: %v", err)
	}
	return eng
}

type memSample struct {
	alloc      uint64
	goroutines int
}

func sample() memSample {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return memSample{alloc: m.Alloc, goroutines: runtime.NumGoroutine()}
}

func (s memSample) delta(base memSample) (int64, int) {
	return int64(s.alloc) - int64(base.alloc), s.goroutines - base.goroutines
}

func writeHeapProfile(t *testing.T, name string) {
	t.Helper()
	f, err := os.Create(name)
	if err != nil {
		t.Fatalf("profile file creation failed: %v", err)
	}
	defer func() {
		f.Close()
		os.Remove(name)
	}()
	if err := pprof.WriteHeapProfile(f); err != nil {
		t.Errorf("heap profile write failed: %v", err)
	}
}

func TestSuggestMemoryBasic(t *testing.T) {
	for _, iterations := range []int{100, 500, 1000} {
		t.Run(fmt.Sprintf("iterations_%d", iterations), func(t *testing.T) {
			eng := newEngine(t, 2000)
			eng.Suggest("warm", 8)
			base := sample()

			ops := 0
			for range iterations {
				for _, burst := range keystrokes {
					for _, q := range burst {
						_ = eng.Suggest(q, 8)
						ops++
					}
				}
			}

			memDelta, goroutineDelta := sample().delta(base)
			memPerOp := float64(memDelta) / float64(ops)
			t.Logf("iterations=%d ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d",
				iterations, ops, memDelta, memPerOp, goroutineDelta)

			if memPerOp > 1000 {
				t.Errorf("excessive memory usage per operation: %.2f bytes", memPerOp)
			}
			if goroutineDelta > 2 {
				t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
			}
		})
	}
}

func TestSearchMemoryConcurrent(t *testing.T) {
	configs := []struct {
		workers             int
		iterationsPerWorker int
	}{
		{workers: 1, iterationsPerWorker: 400},
		{workers: 4, iterationsPerWorker: 100},
		{workers: 8, iterationsPerWorker: 50},
	}

	for _, cfg := range configs {
		t.Run(fmt.Sprintf("workers_%d_iter_%d", cfg.workers, cfg.iterationsPerWorker), func(t *testing.T) {
			eng := newEngine(t, 2000)
			spec := rank.DefaultFilterSpec()
			base := sample()

			var wg sync.WaitGroup
			for range cfg.workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range cfg.iterationsPerWorker {
						for _, s := range specialties {
							_, _ = eng.Search(s, spec, rank.PageRequest{Limit: 20})
						}
						_ = eng.Rank(spec.WithSortBy(rank.SortRating), rank.PageRequest{Limit: 20})
					}
				}()
			}
			wg.Wait()

			memDelta, goroutineDelta := sample().delta(base)
			t.Logf("workers=%d mem_delta=%d bytes goroutine_delta=%d", cfg.workers, memDelta, goroutineDelta)
			writeHeapProfile(t, "concurrent_search.prof")

			if memDelta > 10*1024*1024 {
				t.Errorf("excessive retained memory: %d bytes", memDelta)
			}
			if goroutineDelta > 3 {
				t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
			}
		})
	}
}

// Old snapshots must be collectable once a refresh publishes a new one.
func TestRefreshDoesNotRetainSnapshots(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping long-running refresh test in short mode")
	}
	eng := newEngine(t, 5000)
	base := sample()
	maxMemDelta := int64(0)

	for cycle := range 30 {
		if err := eng.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh %d failed: %v", cycle, err)
		}
		for _, burst := range keystrokes {
			for _, q := range burst {
				_ = eng.Suggest(q, 8)
			}
		}
		if cycle%10 == 0 {
			memDelta, goroutineDelta := sample().delta(base)
			maxMemDelta = max(maxMemDelta, memDelta)
			t.Logf("cycle=%d mem_delta=%d bytes goroutine_delta=%d", cycle, memDelta, goroutineDelta)
		}
	}

	memDelta, goroutineDelta := sample().delta(base)
	t.Logf("final_summary: mem_delta=%d bytes max_mem_delta=%d goroutine_delta=%d", memDelta, maxMemDelta, goroutineDelta)
	writeHeapProfile(t, "refresh_stability.prof")

	if maxMemDelta > 32*1024*1024 {
		t.Errorf("excessive peak memory usage: %d bytes", maxMemDelta)
	}
	if goroutineDelta > 2 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
	}
}

// Debounced keystroke bursts must not leave timers or lookups behind.
func TestControllerBurstsDoNotLeak(t *testing.T) {
	eng := newEngine(t, 1000)
	base := sample()

	var mu sync.Mutex
	delivered := 0
	ctrl := async.NewController(
		func(ctx context.Context, q string) ([]suggest.Suggestion, error) {
			return eng.Suggest(q, 8), ctx.Err()
		},
		func(async.Token, string, []suggest.Suggestion) {
			mu.Lock()
			delivered++
			mu.Unlock()
		},
		async.WithDebounce(2*time.Millisecond),
	)

	for range 50 {
		for _, burst := range keystrokes {
			for _, q := range burst {
				ctrl.Submit(q)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	ctrl.Cancel()
	time.Sleep(50 * time.Millisecond)

	_, goroutineDelta := sample().delta(base)
	mu.Lock()
	t.Logf("bursts=%d delivered=%d goroutine_delta=%d", 50*len(keystrokes), delivered, goroutineDelta)
	mu.Unlock()

	if goroutineDelta > 2 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
	}
}
