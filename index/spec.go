package index

import (
	"fmt"
	"strconv"
	"strings"
)

// Spec is a parsed factory specification. The textual form follows the
// conventional factory-string style: "Flat" for an exact index, or
// "IVF<nlist>" (optionally "IVF<nlist>,Flat") for an inverted-file index
// with nlist partitions and uncompressed residuals.
type Spec struct {
	Kind  Kind
	NList int // IVF partition count; zero for flat
}

func (s Spec) String() string {
	if s.Kind == KindIVF {
		return fmt.Sprintf("IVF%d,Flat", s.NList)
	}
	return "Flat"
}

// ParseSpec parses a factory specification string. Parsing happens once at
// index-open time; the resulting Spec carries the resolved Kind.
func ParseSpec(s string) (Spec, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Spec{Kind: KindFlat}, nil
	}

	parts := strings.Split(trimmed, ",")
	head := strings.ToLower(strings.TrimSpace(parts[0]))

	switch {
	case head == "flat":
		if len(parts) > 1 {
			return Spec{}, fmt.Errorf("invalid factory spec %q: flat takes no arguments", s)
		}
		return Spec{Kind: KindFlat}, nil

	case strings.HasPrefix(head, "ivf"):
		nlist, err := strconv.Atoi(head[len("ivf"):])
		if err != nil || nlist <= 0 {
			return Spec{}, fmt.Errorf("invalid factory spec %q: bad partition count", s)
		}
		if len(parts) > 1 {
			tail := strings.ToLower(strings.TrimSpace(parts[1]))
			if tail != "flat" {
				return Spec{}, fmt.Errorf("invalid factory spec %q: unsupported storage %q", s, parts[1])
			}
		}
		if len(parts) > 2 {
			return Spec{}, fmt.Errorf("invalid factory spec %q", s)
		}
		return Spec{Kind: KindIVF, NList: nlist}, nil

	default:
		return Spec{}, fmt.Errorf("invalid factory spec %q", s)
	}
}
