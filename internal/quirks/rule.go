// Package quirks implements per-user text quirks: ordered substitution rules
// applied to outgoing messages, persisted as JSON keyed by user identifier.
package quirks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	shlex "github.com/anmitsu/go-shlex"
)

// Kind names a quirk rule variant.
type Kind string

const (
	KindPrefix  Kind = "prefix"
	KindSuffix  Kind = "suffix"
	KindReplace Kind = "replace"
	KindRegex   Kind = "regex"
	KindRandom  Kind = "random"
)

var (
	ErrUnknownKind = errors.New("unknown quirk kind")
	ErrArity       = errors.New("wrong number of quirk operands")
)

// Rule is one quirk. Prefix and suffix rules use Operand only; replace and
// regex rules replace Operand with Replacement; random rules replace matches
// of Operand with one of Choices.
type Rule struct {
	Kind        Kind
	Operand     string
	Replacement string
	Choices     []string

	// raw keeps rules of unknown kinds intact across a load/save cycle.
	raw json.RawMessage
}

// MarshalJSON encodes the rule as a [kind, operand] pair.
func (r Rule) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	var operand any
	switch r.Kind {
	case KindPrefix, KindSuffix:
		operand = r.Operand
	case KindReplace, KindRegex:
		operand = []string{r.Operand, r.Replacement}
	case KindRandom:
		choices := r.Choices
		if choices == nil {
			choices = []string{}
		}
		operand = []any{r.Operand, choices}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
	return json.Marshal([]any{r.Kind, operand})
}

// UnmarshalJSON decodes a [kind, operand] pair.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("quirk is not a [kind, operand] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: got %d elements", ErrArity, len(pair))
	}
	var kind Kind
	if err := json.Unmarshal(pair[0], &kind); err != nil {
		return fmt.Errorf("quirk kind: %w", err)
	}

	*r = Rule{Kind: kind}
	switch kind {
	case KindPrefix, KindSuffix:
		return json.Unmarshal(pair[1], &r.Operand)
	case KindReplace, KindRegex:
		var ops []string
		if err := json.Unmarshal(pair[1], &ops); err != nil {
			return fmt.Errorf("%s operands: %w", kind, err)
		}
		if len(ops) != 2 {
			return fmt.Errorf("%w: %s takes 2, got %d", ErrArity, kind, len(ops))
		}
		r.Operand, r.Replacement = ops[0], ops[1]
	case KindRandom:
		var ops []json.RawMessage
		if err := json.Unmarshal(pair[1], &ops); err != nil {
			return fmt.Errorf("random operands: %w", err)
		}
		if len(ops) != 2 {
			return fmt.Errorf("%w: random takes 2, got %d", ErrArity, len(ops))
		}
		if err := json.Unmarshal(ops[0], &r.Operand); err != nil {
			return fmt.Errorf("random pattern: %w", err)
		}
		if err := json.Unmarshal(ops[1], &r.Choices); err != nil {
			var single string
			if json.Unmarshal(ops[1], &single) != nil {
				return fmt.Errorf("random choices: %w", err)
			}
			r.Choices = []string{single}
		}
	default:
		r.raw = append(json.RawMessage(nil), data...)
	}
	return nil
}

// ParseRule builds a rule from command words, e.g.
//
//	prefix "::"
//	replace a 4
//	regex '(\w)\1' 'double $1'
//	random '\bI\b' I i
func ParseRule(args []string) (Rule, error) {
	if len(args) == 0 {
		return Rule{}, fmt.Errorf("%w: missing kind", ErrArity)
	}
	kind := Kind(strings.ToLower(args[0]))
	ops := args[1:]
	switch kind {
	case KindPrefix, KindSuffix:
		if len(ops) != 1 {
			return Rule{}, fmt.Errorf("%w: %s takes 1 operand", ErrArity, kind)
		}
		return Rule{Kind: kind, Operand: ops[0]}, nil
	case KindReplace, KindRegex:
		if len(ops) != 2 {
			return Rule{}, fmt.Errorf("%w: %s takes 2 operands", ErrArity, kind)
		}
		return Rule{Kind: kind, Operand: ops[0], Replacement: ops[1]}, nil
	case KindRandom:
		if len(ops) < 2 {
			return Rule{}, fmt.Errorf("%w: random takes a pattern and at least 1 choice", ErrArity)
		}
		return Rule{Kind: kind, Operand: ops[0], Choices: append([]string(nil), ops[1:]...)}, nil
	default:
		return Rule{}, fmt.Errorf("%w: %q", ErrUnknownKind, args[0])
	}
}

// ParseCommand splits a /quirk command line with shell quoting and parses it.
func ParseCommand(line string) (Rule, error) {
	args, err := shlex.Split(line, true)
	if err != nil {
		return Rule{}, fmt.Errorf("could not split quirk: %w", err)
	}
	return ParseRule(args)
}

// String describes the rule for listings.
func (r Rule) String() string {
	switch r.Kind {
	case KindPrefix, KindSuffix:
		return fmt.Sprintf("%s %q", r.Kind, r.Operand)
	case KindReplace, KindRegex:
		return fmt.Sprintf("%s %q -> %q", r.Kind, r.Operand, r.Replacement)
	case KindRandom:
		return fmt.Sprintf("%s %q -> [%s]", r.Kind, r.Operand, strings.Join(r.Choices, " | "))
	default:
		return fmt.Sprintf("%s %s", r.Kind, string(r.raw))
	}
}
