package plans_test

import (
	"errors"
	"testing"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/plans"
)

func TestDefault_HasThreePlans(t *testing.T) {
	c := plans.Default()

	ids := []string{}
	for _, p := range c.List() {
		ids = append(ids, p.ID)
	}
	want := []string{"starter", "professional", "enterprise"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], ids[i])
		}
	}

	p, err := c.Get("professional")
	if err != nil {
		t.Fatal(err)
	}
	if p.Currency != "brl" || p.Amount != 19700 || len(p.Features) == 0 {
		t.Errorf("unexpected professional plan: %+v", p)
	}
}

func TestGet_UnknownPlan(t *testing.T) {
	_, err := plans.Default().Get("gold")

	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParse_RejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"empty":     "plans: []",
		"no amount": "plans:\n  - id: x\n    currency: brl\n",
		"duplicate": "plans:\n  - {id: x, amount: 1, currency: brl}\n  - {id: x, amount: 2, currency: brl}\n",
		"bad yaml":  "plans: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := plans.Parse([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
