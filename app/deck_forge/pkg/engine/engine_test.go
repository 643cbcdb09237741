package engine

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/cache"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/stage"
)

const inputText = "Welcome everyone. Revenue grew: Q1: 10, Q2: 12, Q3: 15. Step 1: plan, Step 2: build, Step 3: ship."

type fakeOutline struct {
	calls atomic.Int32
	deck  *model.Deck
	err   error
}

func (f *fakeOutline) Name() string { return "fake-outline" }

func (f *fakeOutline) GenerateOutline(context.Context, string, int, model.Language) (*model.Deck, error) {
	f.calls.Add(1)
	return f.deck.Clone(), f.err
}

func skeleton() *model.Deck {
	return &model.Deck{
		Meta: model.DeckMeta{Topic: "Quarterly update"},
		Slides: []model.Slide{
			{Kind: model.SlideTitle, Title: "Intro", Blocks: []model.ContentBlock{
				model.Bullet("welcome everyone"), model.Bullet("agenda today"),
			}},
			{Title: "Revenue", Blocks: []model.ContentBlock{model.Bullet("Q1: 10, Q2: 12, Q3: 15")}},
			{Blocks: []model.ContentBlock{
				model.Bullet("Step 1: plan"), model.Bullet("Step 2: build"), model.Bullet("Step 3: ship"),
			}},
		},
	}
}

type fakeRefiner struct {
	out   []model.Refinement
	err   error
	delay time.Duration
	hook  func()
}

func (f *fakeRefiner) Name() string { return "fake-refiner" }

func (f *fakeRefiner) Refine(ctx context.Context, _ []model.BlockRef, _ model.Language) ([]model.Refinement, error) {
	if f.hook != nil {
		f.hook()
	}
	if f.delay > 0 {
		time.Sleep(f.delay) // 故意忽略 ctx
	}
	return f.out, f.err
}

type fakeImages struct {
	mu  sync.Mutex
	n   int
	err error
}

func (f *fakeImages) Name() string { return "fake-images" }

func (f *fakeImages) SearchImage(context.Context, []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	if f.err != nil {
		return "", f.err
	}
	return "https://img/found.jpg", nil
}

func defaultRefiner() *fakeRefiner {
	return &fakeRefiner{out: []model.Refinement{
		{Block: model.BlockID{Slide: 0, Block: 0}, Refined: "Welcome, everyone", Confidence: 0.9},
		{Block: model.BlockID{Slide: 0, Block: 1}, Refined: "Today's agenda", Confidence: 0.3},
	}}
}

func newEngine(outline *fakeOutline, refiner *fakeRefiner, images *fakeImages, c cache.Cache) *Engine {
	caps := Capabilities{Outline: outline, ImageWorkers: 2}
	if refiner != nil {
		caps.Refiner = refiner
	}
	if images != nil {
		caps.Images = images
	}
	return New(caps, c)
}

func testConfig() model.StageConfig {
	cfg := model.DefaultStageConfig()
	cfg.TargetSlideCount = 3
	cfg.Language = model.LanguageEN
	cfg.PerStageTimeout = 2 * time.Second
	return cfg
}

func TestRunProducesValidDeck(t *testing.T) {
	var steps []int
	e := newEngine(&fakeOutline{deck: skeleton()}, defaultRefiner(), &fakeImages{}, nil)
	deck, report, err := e.Run(context.Background(), inputText, testConfig(), RunOptions{
		ProgressCallback: func(_ string, p int) { steps = append(steps, p) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := deck.Validate(); err != nil {
		t.Fatalf("deck violates invariants: %v", err)
	}
	if deck.Report != report {
		t.Errorf("report not attached to deck")
	}
	if deck.Slides[2].Title != "Step 1: plan" {
		t.Errorf("synthesized title = %q", deck.Slides[2].Title)
	}
	if v := deck.Slides[1].Visual; v == nil || v.Kind != model.VisualLine {
		t.Errorf("slide 1 visual = %+v", v)
	}
	if v := deck.Slides[2].Visual; v == nil || v.Kind != model.VisualProcess {
		t.Errorf("slide 2 visual = %+v", v)
	}
	for _, s := range deck.Slides {
		if s.Asset.Ref != "https://img/found.jpg" {
			t.Errorf("slide %d asset = %+v", s.Ordinal, s.Asset)
		}
	}
	if deck.Meta.GeneratedAt.IsZero() || deck.Meta.Language != model.LanguageEN {
		t.Errorf("meta = %+v", deck.Meta)
	}
	for i := 1; i < len(steps); i++ {
		if steps[i] < steps[i-1] {
			t.Errorf("progress went backwards: %v", steps)
		}
	}
	if len(steps) == 0 || steps[len(steps)-1] != 100 {
		t.Errorf("progress = %v, want to end at 100", steps)
	}
}

func TestRunFatalOutline(t *testing.T) {
	cause := errors.New("model unreachable")
	e := newEngine(&fakeOutline{err: cause}, defaultRefiner(), &fakeImages{}, nil)
	deck, report, err := e.Run(context.Background(), inputText, testConfig(), RunOptions{})

	var pf *PipelineFailure
	if !errors.As(err, &pf) {
		t.Fatalf("err = %v, want PipelineFailure", err)
	}
	if stage.KindOf(err) != model.FailureGeneration || !errors.Is(err, cause) {
		t.Errorf("err = %v, kind %s", err, stage.KindOf(err))
	}
	if deck != nil || report != nil {
		t.Errorf("fatal run must not produce a deck")
	}
}

func TestRunPartialOutlineSucceeds(t *testing.T) {
	partial := &model.Deck{Slides: []model.Slide{{Title: "Only slide", Blocks: []model.ContentBlock{model.Bullet("x")}}}}
	e := newEngine(&fakeOutline{deck: partial, err: errors.New("truncated")}, nil, &fakeImages{}, nil)
	deck, report, err := e.Run(context.Background(), inputText, testConfig(), RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(deck.Slides) != 1 {
		t.Errorf("slides = %d", len(deck.Slides))
	}
	if st, _ := report.Stage(model.StageOutline); st.Status != model.StatusDegraded {
		t.Errorf("outline status = %s, want degraded", st.Status)
	}
	if st, _ := report.Stage(model.StageRefine); st.Status != model.StatusSkipped {
		t.Errorf("refine without capability = %s, want skipped", st.Status)
	}
}

func TestConfidenceGating(t *testing.T) {
	e := newEngine(&fakeOutline{deck: skeleton()}, defaultRefiner(), &fakeImages{}, nil)
	deck, report, err := e.Run(context.Background(), inputText, testConfig(), RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	accepted, rejected := deck.Slides[0].Blocks[0], deck.Slides[0].Blocks[1]
	if accepted.Kind != model.BlockRefinedBullet || accepted.Display() != "Welcome, everyone" || accepted.Text != "welcome everyone" {
		t.Errorf("accepted block = %+v", accepted)
	}
	if rejected.Kind != model.BlockBullet || rejected.Display() != "agenda today" {
		t.Errorf("low-confidence refinement replaced the original: %+v", rejected)
	}
	if len(report.Rejected) != 1 || report.Rejected[0].Proposed != "Today's agenda" {
		t.Errorf("rejected = %+v", report.Rejected)
	}
	if got := report.RejectedSlides(); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("RejectedSlides() = %v", got)
	}
	if report.AverageConfidence != 0.9 {
		t.Errorf("AverageConfidence = %v", report.AverageConfidence)
	}
	st, _ := report.Stage(model.StageRefine)
	if st.Attempted != 2 || st.Applied != 1 {
		t.Errorf("refine stat = %+v", st)
	}
}

func TestGracefulDegradation(t *testing.T) {
	tests := []struct {
		name   string
		images *fakeImages
		stages []model.StageID
	}{
		{"resolution fails", &fakeImages{err: model.ErrServiceUnavailable}, nil},
		{"resolution disabled", &fakeImages{}, []model.StageID{model.StageRefine, model.StageDetect}},
		{"no image capability", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.EnabledStages = tt.stages
			e := newEngine(&fakeOutline{deck: skeleton()}, defaultRefiner(), tt.images, nil)
			deck, report, err := e.Run(context.Background(), inputText, cfg, RunOptions{})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			for _, s := range deck.Slides {
				if !s.Asset.IsPlaceholder() {
					t.Errorf("slide %d asset = %+v, want placeholder", s.Ordinal, s.Asset)
				}
			}
			if !report.IsDegraded() {
				t.Errorf("report should list the degraded resolution")
			}
		})
	}
}

func TestCacheEffectiveness(t *testing.T) {
	mem := cache.NewMemory(64, 0)
	outline := &fakeOutline{deck: skeleton()}
	e := newEngine(outline, defaultRefiner(), &fakeImages{}, mem)

	first, _, err := e.Run(context.Background(), inputText, testConfig(), RunOptions{})
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, report, err := e.Run(context.Background(), inputText, testConfig(), RunOptions{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if outline.calls.Load() != 1 {
		t.Errorf("outline capability invoked %d times, want 1", outline.calls.Load())
	}
	for _, id := range model.AllStages {
		if st, _ := report.Stage(id); !st.CacheHit {
			t.Errorf("stage %s not served from cache on second run", id)
		}
	}
	if !reflect.DeepEqual(summarize(first), summarize(second)) {
		t.Errorf("cached run produced a different deck:\n%v\n%v", summarize(first), summarize(second))
	}
}

// summarize 标题、显示文本、图表类型与配图
func summarize(d *model.Deck) []string {
	var out []string
	for _, s := range d.Slides {
		out = append(out, "title:"+s.Title)
		for _, b := range s.Blocks {
			out = append(out, string(b.Kind)+":"+b.Display())
		}
		if s.Visual != nil {
			out = append(out, "visual:"+string(s.Visual.Kind))
		}
		out = append(out, "asset:"+string(s.Asset.State)+":"+s.Asset.Ref)
	}
	return out
}

func TestDeterminism(t *testing.T) {
	run := func() *model.Deck {
		e := newEngine(&fakeOutline{deck: skeleton()}, defaultRefiner(), &fakeImages{}, nil)
		deck, _, err := e.Run(context.Background(), inputText, testConfig(), RunOptions{})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return deck
	}
	a, b := run(), run()
	if len(a.Slides) != len(b.Slides) {
		t.Fatalf("slide counts differ")
	}
	for i := range a.Slides {
		sa, sb := a.Slides[i], b.Slides[i]
		if sa.Title != sb.Title || !reflect.DeepEqual(sa.Blocks, sb.Blocks) || !reflect.DeepEqual(sa.Visual, sb.Visual) {
			t.Errorf("slide %d differs between runs", i)
		}
	}
}

func TestSlowStageTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.PerStageTimeout = 50 * time.Millisecond
	e := newEngine(&fakeOutline{deck: skeleton()}, &fakeRefiner{delay: 2 * time.Second}, &fakeImages{}, nil)

	start := time.Now()
	deck, report, err := e.Run(context.Background(), inputText, cfg, RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run() took %s, per-stage deadline not enforced", elapsed)
	}
	st, _ := report.Stage(model.StageRefine)
	if st.Status != model.StatusFailed {
		t.Errorf("refine stat = %+v, want failed", st)
	}
	var kinds []model.FailureKind
	for _, d := range report.Degraded {
		kinds = append(kinds, d.Kind)
	}
	if len(kinds) == 0 || kinds[0] != model.FailureTimeout {
		t.Errorf("degradations = %v, want Timeout first", kinds)
	}
	if deck.Slides[0].Blocks[0].Kind != model.BlockBullet {
		t.Errorf("timed-out refinement must not touch blocks")
	}
}

func TestCancellationReturnsMergedDeck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	refiner := &fakeRefiner{hook: cancel, delay: 200 * time.Millisecond}
	e := newEngine(&fakeOutline{deck: skeleton()}, refiner, &fakeImages{}, nil)

	deck, report, err := e.Run(ctx, inputText, testConfig(), RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := deck.Validate(); err != nil {
		t.Errorf("cancelled run returned an inconsistent deck: %v", err)
	}
	if st, _ := report.Stage(model.StageRefine); st.Status != model.StatusFailed {
		t.Errorf("refine stat = %+v", st)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	e := newEngine(&fakeOutline{deck: skeleton()}, nil, nil, nil)
	if _, _, err := e.Run(context.Background(), "   ", testConfig(), RunOptions{}); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty input err = %v", err)
	}
	cfg := testConfig()
	cfg.TargetSlideCount = 42
	if _, _, err := e.Run(context.Background(), inputText, cfg, RunOptions{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("bad config err = %v", err)
	}
}

func TestImageOutageIsNotCached(t *testing.T) {
	mem := cache.NewMemory(64, 0)
	images := &fakeImages{err: model.ErrServiceUnavailable}
	e := newEngine(&fakeOutline{deck: skeleton()}, defaultRefiner(), images, mem)

	first, _, err := e.Run(context.Background(), inputText, testConfig(), RunOptions{})
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if !first.Slides[0].Asset.IsPlaceholder() {
		t.Fatalf("asset during outage = %+v, want placeholder", first.Slides[0].Asset)
	}

	images.mu.Lock()
	images.err = nil
	calls := images.n
	images.mu.Unlock()

	second, report, err := e.Run(context.Background(), inputText, testConfig(), RunOptions{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if st, _ := report.Stage(model.StageResolve); st.CacheHit {
		t.Errorf("resolve served the outage placeholders from cache")
	}
	for _, s := range second.Slides {
		if s.Asset.Ref != "https://img/found.jpg" {
			t.Errorf("slide %d asset after recovery = %+v", s.Ordinal, s.Asset)
		}
	}
	images.mu.Lock()
	defer images.mu.Unlock()
	if images.n == calls {
		t.Errorf("recovered searcher was never called")
	}
}

// slowOutline 阻塞到期限结束后才返回已生成的部分
type slowOutline struct{ deck *model.Deck }

func (slowOutline) Name() string { return "slow-outline" }

func (f slowOutline) GenerateOutline(ctx context.Context, _ string, _ int, _ model.Language) (*model.Deck, error) {
	<-ctx.Done()
	return f.deck.Clone(), ctx.Err()
}

func TestOutlineTimeoutKeepsPartialSkeleton(t *testing.T) {
	cfg := testConfig()
	cfg.PerStageTimeout = 20 * time.Millisecond
	partial := &model.Deck{Slides: []model.Slide{
		{Title: "Intro", Blocks: []model.ContentBlock{model.Bullet("welcome")}},
		{Title: "Plan", Blocks: []model.ContentBlock{model.Bullet("ship it")}},
	}}
	e := New(Capabilities{Outline: slowOutline{deck: partial}}, nil)

	deck, report, err := e.Run(context.Background(), inputText, cfg, RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v, want degraded run", err)
	}
	if len(deck.Slides) != 2 {
		t.Errorf("slides = %d, want 2", len(deck.Slides))
	}
	st, _ := report.Stage(model.StageOutline)
	if st.Status != model.StatusDegraded {
		t.Errorf("outline status = %s, want degraded", st.Status)
	}
}
