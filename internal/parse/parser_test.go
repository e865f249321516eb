package parse

import (
	"testing"

	"github.com/flexer23/TRTwitchPlaysBot/internal/model"
)

func testParser() *Parser {
	return New(Config{
		Vocabulary: NewVocabulary([]string{"a", "b", "start", "left", "right", "secretbutton"}),
		Blacklist: map[string]model.AccessLevel{
			"secretbutton": model.LevelModerator,
		},
		DefaultDurationType:       model.UnitMilliseconds,
		DefaultDurationValue:      200,
		FrameMs:                   16,
		MaxInputDurationMs:        60000,
		MaxSimultaneousDurationMs: 60000,
		ControllerCount:           2,
	})
}

func TestParseSingleInputDefaultDuration(t *testing.T) {
	p := testParser()
	seq := p.Parse("a", model.LevelUser, 0)

	if seq.Result != model.Valid {
		t.Fatalf("Result = %v, want Valid", seq.Result)
	}
	if len(seq.Subsequences) != 1 || len(seq.Subsequences[0].Inputs) != 1 {
		t.Fatalf("Subsequences = %+v", seq.Subsequences)
	}
	in := seq.Subsequences[0].Inputs[0]
	if in.Name != "a" || in.Port != 0 || in.DurationMs(16) != 200 {
		t.Fatalf("Input = %+v, want a@0 for 200ms", in)
	}
}

func TestParseChordExplicitDuration(t *testing.T) {
	p := testParser()
	seq := p.Parse("a+b500ms", model.LevelUser, 0)

	if seq.Result != model.Valid {
		t.Fatalf("Result = %v, want Valid", seq.Result)
	}
	if len(seq.Subsequences) != 1 || len(seq.Subsequences[0].Inputs) != 2 {
		t.Fatalf("Subsequences = %+v", seq.Subsequences)
	}
	b := seq.Subsequences[0].Inputs[1]
	if b.Name != "b" || b.DurationMs(16) != 500 {
		t.Fatalf("Input b = %+v, want 500ms", b)
	}
}

func TestParseSequentialSteps(t *testing.T) {
	p := testParser()
	seq := p.Parse("a200ms .300ms b", model.LevelUser, 0)

	if seq.Result != model.Valid {
		t.Fatalf("Result = %v, want Valid", seq.Result)
	}
	if len(seq.Subsequences) != 3 {
		t.Fatalf("Subsequences = %d, want 3", len(seq.Subsequences))
	}
	wait := seq.Subsequences[1].Inputs[0]
	if !wait.IsWait() || wait.DurationMs(16) != 300 {
		t.Fatalf("wait input = %+v", wait)
	}
}

func TestParseInvalidPortNumber(t *testing.T) {
	p := testParser()
	seq := p.Parse("a&3", model.LevelUser, 0)

	if seq.Result != model.InvalidPortNumber {
		t.Fatalf("Result = %v, want InvalidPortNumber", seq.Result)
	}
}

func TestParseBlacklistedInput(t *testing.T) {
	p := testParser()
	seq := p.Parse("secretbutton", model.LevelWhitelisted, 0)

	if seq.Result != model.BlacklistedInput {
		t.Fatalf("Result = %v, want BlacklistedInput", seq.Result)
	}
}

func TestParseBlacklistAllowsSufficientLevel(t *testing.T) {
	p := testParser()
	seq := p.Parse("secretbutton", model.LevelModerator, 0)

	if seq.Result != model.Valid {
		t.Fatalf("Result = %v, want Valid", seq.Result)
	}
}

func TestParseNormalMessage(t *testing.T) {
	p := testParser()
	seq := p.Parse("hey chat how's it going", model.LevelUser, 0)

	if seq.Result != model.NormalMsg {
		t.Fatalf("Result = %v, want NormalMsg", seq.Result)
	}
}

func TestParseExceededMaxDuration(t *testing.T) {
	p := testParser()
	p.cfg.MaxInputDurationMs = 1000
	seq := p.Parse("a5000ms", model.LevelUser, 0)

	if seq.Result != model.ExceededMaxDuration {
		t.Fatalf("Result = %v, want ExceededMaxDuration", seq.Result)
	}
}

func TestParsePercentOutOfRange(t *testing.T) {
	p := New(Config{
		Vocabulary:           NewVocabulary([]string{"leftstick"}),
		DefaultDurationType:  model.UnitMilliseconds,
		DefaultDurationValue: 200,
		FrameMs:              16,
		ControllerCount:      1,
	})
	seq := p.Parse("leftstick150%", model.LevelUser, 0)

	if seq.Result != model.InvalidInput {
		t.Fatalf("Result = %v, want InvalidInput", seq.Result)
	}
}

func TestParseHoldAndReleaseFlags(t *testing.T) {
	p := testParser()
	seq := p.Parse("a_", model.LevelUser, 0)
	if seq.Result != model.Valid || !seq.Subsequences[0].Inputs[0].Hold {
		t.Fatalf("hold flag not parsed: %+v", seq)
	}

	seq = p.Parse("a-", model.LevelUser, 0)
	if seq.Result != model.Valid || !seq.Subsequences[0].Inputs[0].Release {
		t.Fatalf("release flag not parsed: %+v", seq)
	}
}

func TestParseDeterministic(t *testing.T) {
	p := testParser()
	first := p.Parse("a+b500ms .200 start&2", model.LevelAdmin, 0)
	second := p.Parse("a+b500ms .200 start&2", model.LevelAdmin, 0)

	if first.Result != second.Result || len(first.Subsequences) != len(second.Subsequences) {
		t.Fatalf("parse not deterministic: %+v vs %+v", first, second)
	}
}
