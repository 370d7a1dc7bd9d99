package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerPhases(t *testing.T) {
	tm := NewTimer()
	a := tm.Begin("generate")
	tm.End(a, "64 names")
	b := tm.Begin("intern")
	time.Sleep(time.Millisecond)
	tm.End(b, "")
	tm.End(42, "ignored")

	phases := tm.Phases()
	if len(phases) != 2 || phases[0].Name != "generate" || phases[1].Name != "intern" {
		t.Fatalf("unexpected phases %+v", phases)
	}
	if phases[1].Dur < time.Millisecond {
		t.Errorf("intern phase too short: %s", phases[1].Dur)
	}
	if tm.Total() < phases[1].Dur {
		t.Errorf("total %s below phase duration %s", tm.Total(), phases[1].Dur)
	}

	s := tm.Summary()
	for _, want := range []string{"timings:", "generate", "// 64 names", "intern", "total"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary lacks %q:\n%s", want, s)
		}
	}
}
