package detect

import (
	"math"
	"testing"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

func TestClassify(t *testing.T) {
	c := New(model.DefaultDetectionConfig())
	tests := []struct {
		name string
		text string
		want model.VisualKind
	}{
		{"percent shares sum to 100", "Marketing: 40%, Sales: 35%, R&D: 25%", model.VisualPie},
		{"within tolerance", "Marketing: 40%, Sales: 35%, R&D: 25.5%", model.VisualPie},
		{"same values not summing to 100", "Marketing: 40%, Sales: 35%, R&D: 30%", model.VisualBar},
		{"unitless values summing to 100", "Mobile: 50\nDesktop: 30\nTablet: 20", model.VisualBar},
		{"unitless quarters summing to 100", "Q1: 20, Q2: 30, Q3: 50", model.VisualLine},
		{"unitless years summing to 100", "2021: 30, 2022: 30, 2023: 40", model.VisualLine},
		{"quarters are time ordered", "Q1: 10 tỷ, Q2: 12 tỷ, Q3: 15 tỷ", model.VisualLine},
		{"vietnamese quarters", "Quý 1: 120 triệu\nQuý 2: 150 triệu\nQuý 3: 170 triệu\nQuý 4: 210 triệu", model.VisualLine},
		{"years", "2021: 120, 2022: 180, 2023: 260", model.VisualLine},
		{"unordered quarters", "Q3: 10, Q1: 12, Q2: 15", model.VisualBar},
		{"categories", "Hanoi: 120, HCMC: 200, Da Nang: 80", model.VisualBar},
		{"steps", "Step 1: Collect data. Step 2: Clean it. Step 3: Train the model", model.VisualProcess},
		{"vietnamese steps", "Bước 1: Thu thập dữ liệu\nBước 2: Làm sạch\nBước 3: Huấn luyện", model.VisualProcess},
		{"timeline", "2019: Founded in Hanoi\n2021: Raised Series A\n2023: Expanded to Singapore", model.VisualTimeline},
		{"org chart", "CEO: Nguyễn An\nPhó giám đốc: Trần Bình\nTrưởng phòng Marketing: Lê Chi", model.VisualOrg},
		{"pie beats steps", "Step 1: plan\nStep 2: build\nStep 3: ship\nA: 50%, B: 30%, C: 20%", model.VisualPie},
		{"process beats timeline", "Phase 1: research\nPhase 2: pilot\nPhase 3: rollout\n2020: start\n2022: finish", model.VisualProcess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := c.Classify(tt.text)
			if !ok {
				t.Fatalf("Classify(%q) found nothing, want %s", tt.text, tt.want)
			}
			if v.Kind != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.text, v.Kind, tt.want)
			}
		})
	}
}

func TestClassifyNoMatch(t *testing.T) {
	c := New(model.DefaultDetectionConfig())
	for _, text := range []string{
		"",
		"Our team builds reliable software for customers.",
		"Q1: 10, Q2: 20",                     // too few values
		"Bước 1: Thu thập\nBước 2: Làm sạch", // too few steps
		"Director: Someone",                  // single level
		"A: 10, A: 20, A: 30",                // unstable labels
		"The service: 100 requests",          // "vice" inside a word
	} {
		if v, ok := c.Classify(text); ok {
			t.Errorf("Classify(%q) = %s, want no match", text, v.Kind)
		}
	}
}

func TestPieFractions(t *testing.T) {
	v, _ := New(model.DefaultDetectionConfig()).Classify("Marketing: 40%, Sales: 35%, R&D: 25%")
	want := []float64{0.4, 0.35, 0.25}
	if len(v.Fractions) != len(want) {
		t.Fatalf("fractions = %v", v.Fractions)
	}
	for i := range want {
		if math.Abs(v.Fractions[i]-want[i]) > 1e-9 {
			t.Errorf("fraction[%d] = %v, want %v", i, v.Fractions[i], want[i])
		}
	}
	if v.Labels[2] != "R&D" {
		t.Errorf("labels = %v", v.Labels)
	}
}

func TestUnitScaling(t *testing.T) {
	v, _ := New(model.DefaultDetectionConfig()).Classify("Q1: 1.5 tỷ, Q2: 2 tỷ, Q3: 2,5 tỷ")
	got := v.Series[0].Values
	want := []float64{1.5e9, 2e9, 2.5e9}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestToleranceIsConfigurable(t *testing.T) {
	cfg := model.DefaultDetectionConfig()
	cfg.PercentTolerance = 5
	v, ok := New(cfg).Classify("Marketing: 40%, Sales: 35%, R&D: 30%")
	if !ok || v.Kind != model.VisualPie {
		t.Errorf("tolerance 5 should accept a 105%% sum, got %+v", v)
	}
}

func TestZeroToleranceRequiresExactSum(t *testing.T) {
	cfg := model.DefaultDetectionConfig()
	cfg.PercentTolerance = 0
	c := New(cfg)
	if v, ok := c.Classify("Marketing: 40%, Sales: 35%, R&D: 25%"); !ok || v.Kind != model.VisualPie {
		t.Errorf("exact 100%% sum = %+v, want pie", v)
	}
	if v, ok := c.Classify("Marketing: 40%, Sales: 35%, R&D: 25.5%"); !ok || v.Kind != model.VisualBar {
		t.Errorf("100.5%% sum with zero tolerance = %+v, want bar", v)
	}
}

func TestStepKeywordsAreConfigurable(t *testing.T) {
	cfg := model.DefaultDetectionConfig()
	cfg.StepKeywords = []string{"etapa"}
	v, ok := New(cfg).Classify("Etapa 2: medir\nEtapa 1: planear\nEtapa 3: mejorar")
	if !ok || v.Kind != model.VisualProcess {
		t.Fatalf("custom keyword not honoured: %+v", v)
	}
	if v.Steps[0] != "planear" {
		t.Errorf("steps not ordered by number: %v", v.Steps)
	}
}

func TestOrgTree(t *testing.T) {
	v, _ := New(model.DefaultDetectionConfig()).Classify(
		"CEO: An\nTrưởng phòng Marketing: Chi\nPhó giám đốc: Bình\nNhân viên: Dũng")
	if v.Root == nil || v.Root.Label != "An" {
		t.Fatalf("root = %+v", v.Root)
	}
	depth := map[string]int{}
	v.Root.Walk(func(n *model.OrgNode, d int) { depth[n.Label] = d })
	want := map[string]int{"An": 0, "Bình": 1, "Chi": 2, "Dũng": 3}
	for name, d := range want {
		if depth[name] != d {
			t.Errorf("depth[%s] = %d, want %d", name, depth[name], d)
		}
	}
}

func TestTimelineOrdering(t *testing.T) {
	v, _ := New(model.DefaultDetectionConfig()).Classify("06/2021: Beta\n01/2021: Alpha\n2022: GA")
	if v.Kind != model.VisualTimeline {
		t.Fatalf("kind = %s", v.Kind)
	}
	var got []string
	for _, m := range v.Milestones {
		got = append(got, m.Event)
	}
	if len(got) != 3 || got[0] != "Alpha" || got[1] != "Beta" || got[2] != "GA" {
		t.Errorf("milestones = %v", got)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := New(model.DefaultDetectionConfig())
	text := "Q1: 10, Q2: 12, Q3: 15\nStep 1: a\nStep 2: b\nStep 3: c"
	a := c.Candidates(text)
	b := c.Candidates(text)
	if len(a) != len(b) {
		t.Fatalf("candidate count differs")
	}
	for i := range a {
		if a[i].Kind != b[i].Kind {
			t.Errorf("candidate %d: %s vs %s", i, a[i].Kind, b[i].Kind)
		}
	}
	if a[0].Kind != model.VisualLine || a[1].Kind != model.VisualProcess {
		t.Errorf("candidates not in priority order: %s, %s", a[0].Kind, a[1].Kind)
	}
}
