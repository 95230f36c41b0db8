package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/username/fimaledger/src/models"
	"github.com/username/fimaledger/src/utils"
)

// FundRegistry is the read-only fund configuration handed to every pipeline
// run. It is loaded once at startup; nothing mutates it afterwards, so
// concurrent document ingestions can share it without locking.
type FundRegistry struct {
	Funds []models.Fund `yaml:"funds"`

	// folded keyword -> fund index, precomputed for matching
	byKeyword map[string]int
}

// Funds is the registry loaded at startup, set by main after LoadFundRegistry.
var Funds *FundRegistry

// LoadFundRegistry reads the YAML fund registry file.
func LoadFundRegistry(path string) (*FundRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fund registry %s: %w", path, err)
	}

	var reg FundRegistry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse fund registry %s: %w", path, err)
	}

	seen := make(map[string]bool, len(reg.Funds))
	for i, f := range reg.Funds {
		if f.ID == "" || f.DisplayName == "" {
			return nil, fmt.Errorf("fund registry %s: entry %d is missing id or display_name", path, i)
		}
		if f.ID == models.UnknownFundID {
			return nil, fmt.Errorf("fund registry %s: fund id %q is reserved", path, f.ID)
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("fund registry %s: duplicate fund id %q", path, f.ID)
		}
		seen[f.ID] = true
		if len(f.Keywords) == 0 {
			// Funds with no explicit keywords match on their display name.
			reg.Funds[i].Keywords = []string{f.DisplayName}
		}
	}

	reg.buildIndex()
	return &reg, nil
}

func (r *FundRegistry) buildIndex() {
	r.byKeyword = make(map[string]int)
	for i, f := range r.Funds {
		for _, kw := range f.Keywords {
			r.byKeyword[utils.FoldText(kw)] = i
		}
	}
}

// Match returns the configured fund whose keyword appears (exact or as a
// prefix of the folded text) in the given line text.
func (r *FundRegistry) Match(text string) (models.Fund, bool) {
	folded := utils.FoldText(text)
	for kw, idx := range r.byKeyword {
		if containsKeyword(folded, kw) {
			return r.Funds[idx], true
		}
	}
	return models.Fund{}, false
}

// All returns the configured funds in registry order.
func (r *FundRegistry) All() []models.Fund {
	return r.Funds
}

// ByID looks a fund up by its stable identifier.
func (r *FundRegistry) ByID(id string) (models.Fund, bool) {
	for _, f := range r.Funds {
		if f.ID == id {
			return f, true
		}
	}
	return models.Fund{}, false
}

func containsKeyword(folded, keyword string) bool {
	return keyword != "" && strings.Contains(folded, keyword)
}
