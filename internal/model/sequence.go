package model

import "time"

// ValidationResult classifies the outcome of parsing a chat message,
// matching spec.md §3 exactly. Order matters only for readability; the
// parser returns the first rule that fails per spec.md §4.5.
type ValidationResult int

const (
	Invalid ValidationResult = iota
	Valid
	NormalMsg
	BlacklistedInput
	ExceededMaxDuration
	ExceededMaxSimultaneousDuration
	InvalidPortNumber
	InvalidInput
)

func (v ValidationResult) String() string {
	switch v {
	case Valid:
		return "Valid"
	case NormalMsg:
		return "NormalMsg"
	case BlacklistedInput:
		return "BlacklistedInput"
	case ExceededMaxDuration:
		return "ExceededMaxDuration"
	case ExceededMaxSimultaneousDuration:
		return "ExceededMaxSimultaneousDuration"
	case InvalidPortNumber:
		return "InvalidPortNumber"
	case InvalidInput:
		return "InvalidInput"
	default:
		return "Invalid"
	}
}

// DurationUnit is the unit a subsequence's raw duration number is in
// before conversion to milliseconds. The installation default is
// config.Settings.DefaultDurationType; individual subsequences can
// override it with an explicit "ms"/"s" suffix.
type DurationUnit int

const (
	UnitFrames DurationUnit = iota
	UnitMilliseconds
)

// Input is a single button/axis/wait token within a chord.
type Input struct {
	Name       string // lowercase, from the valid-input vocabulary
	Port       int    // 0-based; resolved from an explicit "&p" or the issuer's default
	Duration   int    // raw number before unit conversion
	Unit       DurationUnit
	Hold       bool // "_" suffix: latches, no balancing release
	Release    bool // "-" suffix: clears a prior hold, never presses
	Percent    int  // 0-100, axes only; -1 if not supplied
	ExplicitPt bool // true if the user wrote an explicit "&p" port suffix
}

// DurationMs converts Input.Duration to milliseconds using the
// installation's frame length when Unit is UnitFrames.
func (in Input) DurationMs(frameMs int) int {
	if in.Unit == UnitFrames {
		return in.Duration * frameMs
	}
	return in.Duration
}

// IsWait reports whether this Input is one of the structural wait tokens
// ('.' or the bare macro sigil '#') rather than a real button/axis.
func (in Input) IsWait() bool {
	return in.Name == "." || in.Name == "#"
}

// InputSubSequence is a chord: a set of Inputs intended to be pressed at
// the same instant and (unless individually held) released together.
type InputSubSequence struct {
	Inputs []Input
}

// MaxDurationMs returns the longest duration among the chord's inputs,
// which is how long the chord as a whole is held before the balancing
// release (spec.md §4.5, "Total duration...max(duration within subseq)").
func (s InputSubSequence) MaxDurationMs(frameMs int) int {
	max := 0
	for _, in := range s.Inputs {
		if d := in.DurationMs(frameMs); d > max {
			max = d
		}
	}
	return max
}

// InputSequence is the fully parsed, validated result of running a chat
// message through the expander and parser.
type InputSequence struct {
	Subsequences []InputSubSequence
	Result       ValidationResult
	TotalMs      time.Duration
	Raw          string // the expanded source text this was parsed from
}

// IsPlayable reports whether the sequence should be handed to the
// executor at all.
func (s InputSequence) IsPlayable() bool {
	return s.Result == Valid && len(s.Subsequences) > 0
}
