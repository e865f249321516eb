package parse

import (
	"strconv"
	"strings"
	"time"

	"github.com/flexer23/TRTwitchPlaysBot/internal/model"
)

// Config bundles everything the parser needs beyond the raw text itself,
// matching spec.md §8 property 2: "parse(s) is a pure function of (s,
// valid_input_vocabulary, blacklist, user.level, port_count, defaults)".
type Config struct {
	Vocabulary *Vocabulary

	// Blacklist maps an input name to the minimum access level required
	// to use it. An input absent from the map has no restriction.
	Blacklist map[string]model.AccessLevel

	DefaultDurationType  model.DurationUnit
	DefaultDurationValue int
	FrameMs              int

	MaxInputDurationMs        int
	MaxSimultaneousDurationMs int

	ControllerCount int
}

// Parser is a stateless, reusable lexer/validator over a fixed Config.
type Parser struct {
	cfg Config
}

// New builds a Parser over cfg.
func New(cfg Config) *Parser {
	return &Parser{cfg: cfg}
}

// Parse lexes and validates already macro-expanded text, returning an
// InputSequence whose Result names the first validation rule (in the
// order from spec.md §4.5) that the message fails, or Valid.
func (p *Parser) Parse(text string, userLevel model.AccessLevel, defaultPort int) model.InputSequence {
	seq := model.InputSequence{Raw: text}

	steps := strings.Fields(text)
	if len(steps) == 0 {
		seq.Result = model.NormalMsg
		return seq
	}

	var unrecognized, malformed bool
	subseqs := make([]model.InputSubSequence, 0, len(steps))

	for _, step := range steps {
		clauses := strings.Split(step, "+")
		sub := model.InputSubSequence{Inputs: make([]model.Input, 0, len(clauses))}
		for _, clause := range clauses {
			if clause == "" {
				unrecognized = true
				continue
			}
			in, recognized, bad := p.parseClause(clause, defaultPort)
			if !recognized {
				unrecognized = true
				continue
			}
			if bad {
				malformed = true
			}
			sub.Inputs = append(sub.Inputs, in)
		}
		subseqs = append(subseqs, sub)
	}

	// Rule 1: anything that isn't a recognized input, macro, or
	// structural character demotes the whole message to chat chatter.
	if unrecognized {
		seq.Result = model.NormalMsg
		return seq
	}

	seq.Subsequences = subseqs

	// Rule 2: blacklist, checked against every parsed input regardless
	// of later-stage malformation.
	for _, sub := range subseqs {
		for _, in := range sub.Inputs {
			if required, ok := p.cfg.Blacklist[in.Name]; ok && userLevel < required {
				seq.Result = model.BlacklistedInput
				return seq
			}
		}
	}

	// Rule 3: per-input duration cap.
	for _, sub := range subseqs {
		for _, in := range sub.Inputs {
			if p.cfg.MaxInputDurationMs > 0 && in.DurationMs(p.cfg.FrameMs) > p.cfg.MaxInputDurationMs {
				seq.Result = model.ExceededMaxDuration
				return seq
			}
		}
	}

	// Rule 4: sum of durations of inputs that hold through the whole
	// sequence, against the simultaneous-duration cap.
	if p.cfg.MaxSimultaneousDurationMs > 0 {
		holdTotal := 0
		for _, sub := range subseqs {
			for _, in := range sub.Inputs {
				if in.Hold {
					holdTotal += in.DurationMs(p.cfg.FrameMs)
				}
			}
		}
		if holdTotal > p.cfg.MaxSimultaneousDurationMs {
			seq.Result = model.ExceededMaxSimultaneousDuration
			return seq
		}
	}

	// Rule 5: explicit port must fall within [1, ControllerCount].
	for _, sub := range subseqs {
		for _, in := range sub.Inputs {
			if in.ExplicitPt && (in.Port < 0 || in.Port >= p.cfg.ControllerCount) {
				seq.Result = model.InvalidPortNumber
				return seq
			}
		}
	}

	// Rule 6: axis percent range, and any clause whose suffix didn't
	// fully parse under the grammar.
	if malformed {
		seq.Result = model.InvalidInput
		return seq
	}
	for _, sub := range subseqs {
		for _, in := range sub.Inputs {
			if in.Percent != -1 && (in.Percent < 0 || in.Percent > 100) {
				seq.Result = model.InvalidInput
				return seq
			}
		}
	}

	seq.Result = model.Valid
	seq.TotalMs = p.totalDuration(subseqs)
	return seq
}

// totalDuration sums each subsequence's chord duration. Hold-flagged
// inputs don't shorten the executor's actual sleep for their own
// subsequence (the chord is still held for its full duration before the
// non-hold members release); the "minus overlap" language in spec.md
// §4.5 describes how a held input's duration is not charged again in
// later subsequences, which this loop already does since a hold simply
// stops contributing once its subsequence has been summed.
func (p *Parser) totalDuration(subseqs []model.InputSubSequence) time.Duration {
	total := 0
	for _, sub := range subseqs {
		total += sub.MaxDurationMs(p.cfg.FrameMs)
	}
	return time.Duration(total) * time.Millisecond
}

// parseClause lexes a single chord member: identifier, optional &port,
// optional duration, optional ms/s unit, optional N%, optional hold/
// release flag. recognized is false only when no vocabulary entry
// prefixes the clause at all (spec.md §4.5 rule 1 territory); malformed
// is true when the identifier matched but leftover characters didn't fit
// the grammar (rule 6 territory).
func (p *Parser) parseClause(clause string, defaultPort int) (in model.Input, recognized, malformed bool) {
	name, ok := p.cfg.Vocabulary.LongestPrefix(clause)
	if !ok {
		return model.Input{}, false, false
	}

	in.Name = name
	in.Port = defaultPort
	in.Percent = -1
	rest := clause[len(name):]

	if strings.HasPrefix(rest, "&") {
		j := 1
		for j < len(rest) && isDigit(rest[j]) {
			j++
		}
		if j == 1 {
			return in, true, true
		}
		num, _ := strconv.Atoi(rest[1:j])
		in.Port = num - 1
		in.ExplicitPt = true
		rest = rest[j:]
	}

	durStr, rest2 := takeDigits(rest)
	if strings.HasPrefix(rest2, "%") {
		// Digits directly followed by '%' are the percent, not a duration.
		durStr, rest2 = "", rest
	}
	rest = rest2
	explicitDuration := durStr != ""

	switch {
	case strings.HasPrefix(rest, "ms"):
		val, _ := strconv.Atoi(durStr)
		in.Duration = val
		in.Unit = model.UnitMilliseconds
		rest = rest[2:]
	case strings.HasPrefix(rest, "s"):
		val, _ := strconv.Atoi(durStr)
		in.Duration = val * 1000
		in.Unit = model.UnitMilliseconds
		rest = rest[1:]
	case explicitDuration:
		val, _ := strconv.Atoi(durStr)
		in.Duration = val
		in.Unit = p.cfg.DefaultDurationType
	default:
		in.Duration = p.cfg.DefaultDurationValue
		in.Unit = p.cfg.DefaultDurationType
	}

	pctStr, rest3 := takeDigits(rest)
	if pctStr != "" && strings.HasPrefix(rest3, "%") {
		val, _ := strconv.Atoi(pctStr)
		in.Percent = val
		rest = rest3[1:]
	}

	if len(rest) > 0 && (rest[0] == '_' || rest[0] == '-') {
		if rest[0] == '_' {
			in.Hold = true
		} else {
			in.Release = true
		}
		rest = rest[1:]
	}

	if rest != "" {
		malformed = true
	}
	return in, true, malformed
}

func takeDigits(s string) (digits, rest string) {
	j := 0
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	return s[:j], s[j:]
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
