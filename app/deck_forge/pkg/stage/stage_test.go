package stage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/cache"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

type fakeOutline struct {
	calls atomic.Int32
	deck  *model.Deck
	err   error
}

func (f *fakeOutline) Name() string { return "fake" }

func (f *fakeOutline) GenerateOutline(ctx context.Context, text string, n int, lang model.Language) (*model.Deck, error) {
	f.calls.Add(1)
	return f.deck.Clone(), f.err
}

type fakeRefiner struct {
	out []model.Refinement
	err error
}

func (f *fakeRefiner) Name() string { return "fake-refiner" }

func (f *fakeRefiner) Refine(ctx context.Context, blocks []model.BlockRef, lang model.Language) ([]model.Refinement, error) {
	return f.out, f.err
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries [][]string
	results map[string]string
	err     error
}

func (f *fakeSearcher) Name() string { return "fake-images" }

func (f *fakeSearcher) SearchImage(ctx context.Context, keywords []string) (string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, keywords)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if ref, ok := f.results[strings.Join(keywords, " ")]; ok {
		return ref, nil
	}
	return "", model.ErrNotFound
}

func twoSlides() *model.Deck {
	return &model.Deck{
		Meta: model.DeckMeta{Language: model.LanguageEN},
		Slides: []model.Slide{
			{Ordinal: 0, Title: "Revenue", Blocks: []model.ContentBlock{
				model.Bullet("Q1: 10, Q2: 12, Q3: 15"),
				model.Paragraph("context paragraph"),
			}},
			{Ordinal: 1, Title: "Plan", Keywords: []string{"roadmap"}, Blocks: []model.ContentBlock{
				model.Bullet("Step 1: plan"), model.Bullet("Step 2: build"), model.Bullet("Step 3: ship"),
			}},
		},
	}
}

func input() Input {
	cfg := model.DefaultStageConfig()
	cfg.TargetSlideCount = 3
	cfg.Language = model.LanguageEN
	return Input{Text: "some text", Deck: twoSlides(), Config: cfg}
}

type countingStage struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (s *countingStage) ID() model.StageID      { return model.StageDetect }
func (s *countingStage) Key(in Input) cache.Key { return cache.NewKey(model.StageDetect, in.Text, nil) }
func (s *countingStage) Apply(ctx context.Context, in Input) (*model.Delta, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay) // 故意忽略 ctx
	}
	if s.err != nil {
		return nil, s.err
	}
	return &model.Delta{Visuals: []model.VisualPatch{{Ordinal: 0, Visual: model.NewProcessFlow([]string{"a"})}}}, nil
}

func TestRunnerCachesSuccess(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(cache.NewMemory(16, 0))
	st := &countingStage{}

	first := r.Run(ctx, st, input(), time.Second)
	second := r.Run(ctx, st, input(), time.Second)

	if st.calls.Load() != 1 {
		t.Errorf("capability invoked %d times, want 1", st.calls.Load())
	}
	if first.CacheHit || !second.CacheHit {
		t.Errorf("cache flags = %v/%v, want false/true", first.CacheHit, second.CacheHit)
	}
	if !reflect.DeepEqual(first.Delta, second.Delta) {
		t.Errorf("cached delta differs: %+v vs %+v", first.Delta, second.Delta)
	}
}

func TestRunnerDoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(cache.NewMemory(16, 0))
	st := &countingStage{err: model.ErrServiceUnavailable}

	res := r.Run(ctx, st, input(), time.Second)
	r.Run(ctx, st, input(), time.Second)

	if st.calls.Load() != 2 {
		t.Errorf("failed stage should be retried, calls = %d", st.calls.Load())
	}
	if KindOf(res.Err) != model.FailureUnavailable {
		t.Errorf("kind = %s, want ServiceUnavailable", KindOf(res.Err))
	}
	if res.Delta != nil {
		t.Errorf("failed non-outline stage returned a delta")
	}
}

func TestRunnerTimeoutBeforeSlowStageReturns(t *testing.T) {
	r := NewRunner(nil)
	st := &countingStage{delay: 500 * time.Millisecond}

	start := time.Now()
	res := r.Run(context.Background(), st, input(), 20*time.Millisecond)
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("Run returned after %s, deadline not enforced", elapsed)
	}
	if KindOf(res.Err) != model.FailureTimeout {
		t.Errorf("kind = %s, want Timeout", KindOf(res.Err))
	}
	if !errors.Is(res.Err, model.ErrTimeout) {
		t.Errorf("error %v does not wrap ErrTimeout", res.Err)
	}
}

type panicStage struct{ countingStage }

func (s *panicStage) Apply(context.Context, Input) (*model.Delta, error) { panic("boom") }

func TestRunnerRecoversPanics(t *testing.T) {
	res := NewRunner(nil).Run(context.Background(), &panicStage{}, input(), time.Second)
	if KindOf(res.Err) != model.FailureDetection {
		t.Errorf("kind = %s, want DetectionError", KindOf(res.Err))
	}
}

func TestOutlineSanitizesSkeleton(t *testing.T) {
	gen := &fakeOutline{deck: &model.Deck{Slides: []model.Slide{
		{Ordinal: 7, Title: " Intro ", Asset: model.PlaceholderAsset(nil, "x")},
		{Ordinal: 9},
		{Ordinal: 3, Blocks: []model.ContentBlock{model.Bullet("only content")}},
		{Title: "A"}, {Title: "B"},
	}}}
	delta, err := NewOutline(gen).Apply(context.Background(), input())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	sk := delta.Skeleton
	if len(sk.Slides) != 3 {
		t.Fatalf("slides = %d, want truncation to 3", len(sk.Slides))
	}
	for i, s := range sk.Slides {
		if s.Ordinal != i {
			t.Errorf("slide %d ordinal = %d", i, s.Ordinal)
		}
		if s.Asset != nil {
			t.Errorf("outline must not set assets")
		}
	}
	if sk.Slides[0].Title != "Intro" {
		t.Errorf("title not trimmed: %q", sk.Slides[0].Title)
	}
}

func TestOutlinePartialAndFatal(t *testing.T) {
	cause := errors.New("model returned truncated JSON")

	partial := &fakeOutline{deck: &model.Deck{Slides: []model.Slide{{Title: "Only"}}}, err: cause}
	delta, err := NewOutline(partial).Apply(context.Background(), input())
	if !IsPartial(err) || delta == nil || len(delta.Skeleton.Slides) != 1 {
		t.Errorf("partial skeleton not returned: %v %+v", err, delta)
	}
	if KindOf(err) != model.FailureGeneration {
		t.Errorf("kind = %s", KindOf(err))
	}

	fatal := &fakeOutline{err: cause}
	delta, err = NewOutline(fatal).Apply(context.Background(), input())
	if delta != nil || IsPartial(err) || !errors.Is(err, cause) {
		t.Errorf("fatal outline = %+v, %v", delta, err)
	}

	empty := &fakeOutline{deck: &model.Deck{}}
	if _, err := NewOutline(empty).Apply(context.Background(), input()); KindOf(err) != model.FailureGeneration {
		t.Errorf("empty outline error = %v", err)
	}
}

func TestRunnerKeepsPartialOutline(t *testing.T) {
	gen := &fakeOutline{deck: &model.Deck{Slides: []model.Slide{{Title: "Only"}}}, err: errors.New("cut")}
	res := NewRunner(cache.NewMemory(4, 0)).Run(context.Background(), NewOutline(gen), input(), time.Second)
	if res.Err == nil || res.Delta == nil || res.Delta.Skeleton == nil {
		t.Fatalf("partial outline dropped: %+v", res)
	}
}

// deadlineOutline 阻塞到期限结束，随后带回已生成的两页
type deadlineOutline struct{ deck *model.Deck }

func (deadlineOutline) Name() string { return "deadline" }

func (f deadlineOutline) GenerateOutline(ctx context.Context, _ string, _ int, _ model.Language) (*model.Deck, error) {
	<-ctx.Done()
	return f.deck.Clone(), ctx.Err()
}

func TestRunnerOutlineDeadline(t *testing.T) {
	tests := []struct {
		name   string
		deck   *model.Deck
		slides int
	}{
		{"partial skeleton survives", &model.Deck{Slides: []model.Slide{{Title: "First"}, {Title: "Second"}}}, 2},
		{"nothing generated", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewRunner(nil).Run(context.Background(), NewOutline(deadlineOutline{deck: tt.deck}), input(), 20*time.Millisecond)
			if KindOf(res.Err) != model.FailureTimeout {
				t.Errorf("kind = %s, want Timeout", KindOf(res.Err))
			}
			if tt.slides == 0 {
				if res.Delta != nil {
					t.Errorf("delta = %+v, want none", res.Delta)
				}
				return
			}
			if !IsPartial(res.Err) || res.Delta == nil || res.Delta.Skeleton == nil {
				t.Fatalf("partial skeleton dropped: %+v", res)
			}
			if got := len(res.Delta.Skeleton.Slides); got != tt.slides {
				t.Errorf("slides = %d, want %d", got, tt.slides)
			}
		})
	}
}

func TestRefineFiltersProposals(t *testing.T) {
	ref := &fakeRefiner{out: []model.Refinement{
		{Block: model.BlockID{Slide: 1, Block: 2}, Refined: "Ship it", Confidence: 1.4},
		{Block: model.BlockID{Slide: 0, Block: 0}, Refined: "Revenue grew each quarter", Confidence: 0.8},
		{Block: model.BlockID{Slide: 0, Block: 0}, Refined: "duplicate", Confidence: 0.9},
		{Block: model.BlockID{Slide: 0, Block: 1}, Refined: "paragraphs are not refined", Confidence: 0.9},
		{Block: model.BlockID{Slide: 5, Block: 0}, Refined: "unknown slide", Confidence: 0.9},
		{Block: model.BlockID{Slide: 1, Block: 0}, Refined: "Step 1: plan", Confidence: 0.9},
	}}
	delta, err := NewRefine(ref).Apply(context.Background(), input())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got := delta.Refinements
	if len(got) != 2 {
		t.Fatalf("refinements = %+v", got)
	}
	if got[0].Block != (model.BlockID{Slide: 0, Block: 0}) || got[0].Refined != "Revenue grew each quarter" {
		t.Errorf("first refinement = %+v", got[0])
	}
	if got[1].Confidence != 1 {
		t.Errorf("confidence not clamped: %v", got[1].Confidence)
	}
}

func TestRefineFailureKind(t *testing.T) {
	_, err := NewRefine(&fakeRefiner{err: errors.New("bad json")}).Apply(context.Background(), input())
	if KindOf(err) != model.FailureRefinement {
		t.Errorf("kind = %s, want RefinementError", KindOf(err))
	}
}

func TestStagesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	stages := []Stage{
		NewRefine(&fakeRefiner{out: []model.Refinement{{Block: model.BlockID{}, Refined: "x", Confidence: 0.5}}}),
		NewDetect(),
		NewResolve(&fakeSearcher{results: map[string]string{"roadmap": "https://img/roadmap.jpg"}}, nil, 2),
	}
	for _, st := range stages {
		if st.Key(input()) != st.Key(input()) {
			t.Errorf("%s: key not deterministic", st.ID())
		}
		a, errA := st.Apply(ctx, input())
		b, errB := st.Apply(ctx, input())
		if errA != nil || errB != nil {
			t.Fatalf("%s: errors %v %v", st.ID(), errA, errB)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("%s: results differ:\n%+v\n%+v", st.ID(), a, b)
		}
	}
}

func TestDetectEmitsVisuals(t *testing.T) {
	delta, err := NewDetect().Apply(context.Background(), input())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(delta.Visuals) != 2 {
		t.Fatalf("visuals = %+v", delta.Visuals)
	}
	if delta.Visuals[0].Visual.Kind != model.VisualLine || delta.Visuals[1].Visual.Kind != model.VisualProcess {
		t.Errorf("kinds = %s, %s", delta.Visuals[0].Visual.Kind, delta.Visuals[1].Visual.Kind)
	}
	if delta.Visuals[0].Visual.Title != "Revenue" {
		t.Errorf("visual title = %q", delta.Visuals[0].Visual.Title)
	}
}

func TestResolveFallbackAndPlaceholder(t *testing.T) {
	s := &fakeSearcher{results: map[string]string{
		"roadmap":           "https://img/roadmap.jpg",
		"business abstract": "https://img/generic.jpg",
	}}
	delta, err := NewResolve(s, []string{"business", "abstract"}, 2).Apply(context.Background(), input())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	a0, a1 := delta.Assets[0].Asset, delta.Assets[1].Asset
	if a0.Ref != "https://img/generic.jpg" || a0.State != model.AssetResolved {
		t.Errorf("slide 0 should use fallback keywords: %+v", a0)
	}
	if a1.Ref != "https://img/roadmap.jpg" || a1.Provider != "fake-images" {
		t.Errorf("slide 1 asset = %+v", a1)
	}

	down := &fakeSearcher{err: model.ErrServiceUnavailable}
	delta, err = NewResolve(down, nil, 2).Apply(context.Background(), input())
	if err != nil {
		t.Fatalf("service errors must not surface: %v", err)
	}
	for _, p := range delta.Assets {
		if !p.Asset.IsPlaceholder() || !p.Asset.Settled() {
			t.Errorf("slide %d asset = %+v, want placeholder", p.Ordinal, p.Asset)
		}
	}
}

func TestSlideKeywords(t *testing.T) {
	s := model.Slide{Title: "The Future of Solar Energy", Blocks: []model.ContentBlock{model.Bullet("Solar panels and storage")}}
	got := SlideKeywords(s)
	want := []string{"future", "solar", "energy", "panels", "storage"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SlideKeywords() = %v, want %v", got, want)
	}
	s.Keywords = []string{"sun", "grid"}
	if got := SlideKeywords(s); !reflect.DeepEqual(got, []string{"sun", "grid"}) {
		t.Errorf("outline keywords not preferred: %v", got)
	}
}

func TestResolveMarksServiceFailuresTransient(t *testing.T) {
	tests := []struct {
		name string
		s    *fakeSearcher
		want bool
	}{
		{"service unavailable", &fakeSearcher{err: model.ErrServiceUnavailable}, true},
		{"search timeout", &fakeSearcher{err: model.ErrTimeout}, true},
		{"no results", &fakeSearcher{}, false},
		{"partly resolved", &fakeSearcher{results: map[string]string{"roadmap": "https://img/roadmap.jpg"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, err := NewResolve(tt.s, nil, 2).Apply(context.Background(), input())
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if delta.Transient != tt.want {
				t.Errorf("Transient = %v, want %v", delta.Transient, tt.want)
			}
		})
	}
}

func TestRunnerSkipsCacheForTransientResult(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(cache.NewMemory(16, 0))
	s := &fakeSearcher{err: model.ErrServiceUnavailable}
	st := NewResolve(s, nil, 1)

	first := r.Run(ctx, st, input(), time.Second)
	if first.Err != nil {
		t.Fatalf("first run error = %v", first.Err)
	}

	s.mu.Lock()
	s.err = nil
	s.results = map[string]string{"roadmap": "https://img/roadmap.jpg"}
	s.mu.Unlock()

	second := r.Run(ctx, st, input(), time.Second)
	if second.CacheHit {
		t.Fatalf("placeholder from an outage was served from cache")
	}
	if a := second.Delta.Assets[1].Asset; a.Ref != "https://img/roadmap.jpg" {
		t.Errorf("slide 1 asset after recovery = %+v", a)
	}

	third := r.Run(ctx, st, input(), time.Second)
	if !third.CacheHit {
		t.Errorf("result without service failures should be cached")
	}
}
