package parsers

import (
	"fmt"

	"github.com/username/fimaledger/src/parsers/layoutpdf"
	"github.com/username/fimaledger/src/parsers/plainpdf"
)

// DefaultBackends returns the extraction engines in fallback priority order:
// the layout-aware engine first, plain text as the safety net.
func DefaultBackends() []Backend {
	return []Backend{
		layoutpdf.NewParser(),
		plainpdf.NewParser(),
	}
}

func GetBackend(name string) (Backend, error) {
	switch name {
	case "layoutpdf":
		return layoutpdf.NewParser(), nil
	case "plainpdf":
		return plainpdf.NewParser(), nil
	default:
		return nil, fmt.Errorf("no extraction backend available for: %s", name)
	}
}
