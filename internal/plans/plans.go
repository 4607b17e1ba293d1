// Package plans loads the subscription catalog.
package plans

import (
	_ "embed"
	"fmt"

	"github.com/atendimentobr/atendimento-api/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultCatalog []byte

// Catalog is an ordered, read-only set of plans.
type Catalog struct {
	plans []domain.Plan
	byID  map[string]domain.Plan
}

// Default returns the embedded catalog. It panics if the embedded file is
// invalid, which only a broken build can cause.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic("plans: embedded catalog: " + err.Error())
	}
	return c
}

// Parse decodes a YAML catalog and checks every plan.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Plans []domain.Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(doc.Plans) == 0 {
		return nil, fmt.Errorf("catalog has no plans")
	}

	c := &Catalog{byID: make(map[string]domain.Plan, len(doc.Plans))}
	for _, p := range doc.Plans {
		switch {
		case p.ID == "":
			return nil, fmt.Errorf("plan without id")
		case p.Amount <= 0:
			return nil, fmt.Errorf("plan %s: amount must be positive", p.ID)
		case p.Currency == "":
			return nil, fmt.Errorf("plan %s: currency required", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("plan %s: duplicate id", p.ID)
		}
		if p.Interval == "" {
			p.Interval = "month"
		}
		c.byID[p.ID] = p
		c.plans = append(c.plans, p)
	}
	return c, nil
}

// Get returns the plan with id, or *domain.ErrValidation when unknown.
func (c *Catalog) Get(id string) (domain.Plan, error) {
	p, ok := c.byID[id]
	if !ok {
		return domain.Plan{}, &domain.ErrValidation{Field: "planId", Message: "Plano inválido"}
	}
	return p, nil
}

// List returns the plans in catalog order.
func (c *Catalog) List() []domain.Plan {
	out := make([]domain.Plan, len(c.plans))
	copy(out, c.plans)
	return out
}
