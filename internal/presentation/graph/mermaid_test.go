package graph_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/webflow/internal/presentation/graph"
	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/dsl"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		flow     func(b *dsl.Builder)
		contains []string
	}{
		{
			name: "State Shapes",
			flow: func(b *dsl.Builder) {
				b.View("form").Render("signup").On("submit", "check")
				b.Decision("check").Otherwise("save")
				b.Action("save").On("success", "mail")
				b.Subflow("mail", "email").On("sent", "done")
				b.End("done")
			},
			contains: []string{
				`form(("form <br/> signup"))`,
				`check{"check"}`,
				`save["save"]`,
				`mail[["mail <br/> ↳ email"]]`,
				`done((("done")))`,
			},
		},
		{
			name: "ID Sanitization",
			flow: func(b *dsl.Builder) {
				b.View("step-one").On("go", "path/to.end")
				b.End("path/to.end")
			},
			contains: []string{
				`step_one(("step-one"))`,
				`path_to_end((("path/to.end")))`,
				`step_one -- "go" --> path_to_end`,
			},
		},
		{
			name: "Transition Kinds",
			flow: func(b *dsl.Builder) {
				b.View("form").
					Refresh("validate").
					When(domain.When(`amount > "10"`, func(context.Context, domain.RequestContext) (bool, error) {
						return true, nil
					}), "done").
					Handle(domain.HandleAny("failed"))
				b.Action("auto").Otherwise("done")
				b.End("done")
				b.End("failed")
			},
			contains: []string{
				`form -. "⟳ validate" .-> form`,
				`form -- "amount > '10'" --> done`,
				`form -. "! *" .-> failed`,
				`auto --> done`,
			},
		},
		{
			name: "Global And Dynamic",
			flow: func(b *dsl.Builder) {
				b.View("form").Route(domain.On("jump"), domain.TargetFunc(
					func(context.Context, domain.RequestContext) (string, error) { return "done", nil },
				))
				b.End("done")
				b.End("cancelled")
				b.Global().On("cancel", "cancelled")
			},
			contains: []string{
				`__global__{{"global"}}`,
				`__global__ -. "cancel" .-> cancelled`,
				`form -- "jump" --> __dynamic__`,
				`__dynamic__(("?"))`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := dsl.New("test")
			tt.flow(b)
			got := graph.GenerateMermaid(b.MustBuild(), nil)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			assert.NotContains(t, got, "Overlay")
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	b := dsl.New("wizard")
	b.View("one").On("next", "two")
	b.View("two").On("next", "three")
	b.End("three")

	got := graph.GenerateMermaid(b.MustBuild(), &graph.Overlay{
		VisitedStates: []string{"one", "one", "ghost"},
		CurrentState:  "two",
	})

	assert.Contains(t, got, "classDef visited")
	assert.Equal(t, 1, strings.Count(got, "class one visited;"))
	assert.NotContains(t, got, "ghost")
	assert.Contains(t, got, "class two current;")
}
