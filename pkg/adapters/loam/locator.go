package loam

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/expr"
	"github.com/aretw0/webflow/pkg/ports"
	"github.com/aretw0/webflow/pkg/registry"
)

// DescriptionAttribute holds the Markdown body of a flow document.
const DescriptionAttribute = "description"

var (
	_ ports.FlowDefinitionLocator = (*Locator)(nil)
	_ ports.FlowLister            = (*Locator)(nil)
)

// Locator adapts a Loam repository of flow documents to the engine's
// FlowDefinitionLocator. Built flows are cached until Invalidate is called
// or a watched document changes.
type Locator struct {
	repo    *loam.TypedRepository[FlowDocument]
	actions *registry.Registry
	exprs   *expr.Env

	mu    sync.RWMutex
	cache map[string]*domain.Flow
}

// Option configures a Locator.
type Option func(*Locator)

// WithActions sets the registry action names in documents are resolved against.
func WithActions(r *registry.Registry) Option {
	return func(l *Locator) { l.actions = r }
}

// WithExpressions sets the environment "${...}" expressions are compiled in.
func WithExpressions(env *expr.Env) Option {
	return func(l *Locator) { l.exprs = env }
}

// New creates a Locator over repo.
func New(repo *loam.TypedRepository[FlowDocument], opts ...Option) *Locator {
	l := &Locator{
		repo:    repo,
		actions: registry.NewRegistry(),
		exprs:   expr.NewEnv(),
		cache:   make(map[string]*domain.Flow),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open initializes a read-only Loam repository at dir and wraps it.
func Open(dir string, opts ...Option) (*Locator, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve definitions dir: %w", err)
	}
	repo, err := loam.Init(abs, loam.WithVersioning(false), loam.WithReadOnly(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open definitions repository %s: %w", abs, err)
	}
	return New(loam.NewTypedRepository[FlowDocument](repo), opts...), nil
}

// GetFlow loads, builds and caches the flow stored under id.
func (l *Locator) GetFlow(ctx context.Context, id string) (*domain.Flow, error) {
	l.mu.RLock()
	f, ok := l.cache[id]
	l.mu.RUnlock()
	if ok {
		return f, nil
	}

	doc, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %w", domain.ErrFlowNotFound, id, err)
	}
	if doc.Data.ID == "" {
		doc.Data.ID = trimExtension(doc.ID)
	}
	f, err = l.build(doc.Data, doc.Content)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[id] = f
	l.mu.Unlock()
	return f, nil
}

// ListFlows returns the ids of every document in the repository.
// Two documents claiming the same id are reported as an error.
func (l *Locator) ListFlows(ctx context.Context) ([]string, error) {
	docs, err := l.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: flow '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Invalidate drops cached flows. With no ids, the whole cache is cleared.
func (l *Locator) Invalidate(ids ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(ids) == 0 {
		clear(l.cache)
		return
	}
	for _, id := range ids {
		delete(l.cache, trimExtension(id))
	}
}

// Watch invalidates flows whose documents change and forwards their ids.
// The channel closes when ctx is done.
func (l *Locator) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				// Inline flows of other documents may embed the changed one.
				l.Invalidate()
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func (l *Locator) build(doc FlowDocument, content string) (*domain.Flow, error) {
	fail := func(err error) (*domain.Flow, error) {
		return nil, fmt.Errorf("%w: flow '%s': %w", domain.ErrInvalidDefinition, doc.ID, err)
	}

	cfg := domain.FlowConfig{
		ID:         doc.ID,
		StartState: doc.Start,
		Attributes: maps.Clone(doc.Attributes),
	}
	if body := strings.TrimSpace(content); body != "" {
		if cfg.Attributes == nil {
			cfg.Attributes = make(map[string]any)
		}
		cfg.Attributes[DescriptionAttribute] = body
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	cfg.StartActions, err = l.actions.Resolve(doc.StartActions...)
	collect(err)
	cfg.EndActions, err = l.actions.Resolve(doc.EndActions...)
	collect(err)

	for _, name := range slices.Sorted(maps.Keys(doc.Variables)) {
		value := doc.Variables[name]
		cfg.Variables = append(cfg.Variables, domain.Variable{
			Name: name,
			Init: func() any { return deepCopy(value) },
		})
	}

	for i, raw := range doc.States {
		var sd StateDocument
		if err := decode(raw, &sd); err != nil {
			collect(fmt.Errorf("states[%d]: %w", i, err))
			continue
		}
		state, err := l.buildState(sd)
		if err != nil {
			collect(fmt.Errorf("state '%s': %w", sd.ID, err))
			continue
		}
		cfg.States = append(cfg.States, state)
	}

	for i, raw := range doc.GlobalTransitions {
		var td TransitionDocument
		if err := decode(raw, &td); err != nil {
			collect(fmt.Errorf("global_transitions[%d]: %w", i, err))
			continue
		}
		t, err := l.buildTransition(td)
		if err != nil {
			collect(fmt.Errorf("global_transitions[%d]: %w", i, err))
			continue
		}
		cfg.GlobalTransitions = append(cfg.GlobalTransitions, t)
	}

	for i, raw := range doc.ExceptionHandlers {
		var hd HandlerDocument
		if err := decode(raw, &hd); err != nil {
			collect(fmt.Errorf("exception_handlers[%d]: %w", i, err))
			continue
		}
		cfg.ExceptionHandlers = append(cfg.ExceptionHandlers, buildHandler(hd))
	}

	for i, raw := range doc.Inline {
		var inner FlowDocument
		if err := decode(raw, &inner); err != nil {
			collect(fmt.Errorf("inline[%d]: %w", i, err))
			continue
		}
		f, err := l.build(inner, "")
		if err != nil {
			collect(err)
			continue
		}
		cfg.InlineFlows = append(cfg.InlineFlows, f)
	}

	if len(errs) > 0 {
		return fail(errors.Join(errs...))
	}
	return domain.NewFlow(cfg)
}

func (l *Locator) buildState(sd StateDocument) (*domain.State, error) {
	kind := domain.StateKind(sd.Type)
	if kind == "" {
		kind = domain.StateView
	}
	state := &domain.State{
		ID:         sd.ID,
		Kind:       kind,
		View:       sd.View,
		Output:     sd.Output,
		Attributes: sd.Attributes,
	}

	var errs []error
	var err error
	if state.EntryActions, err = l.actions.Resolve(sd.Entry...); err != nil {
		errs = append(errs, err)
	}
	if state.ExitActions, err = l.actions.Resolve(sd.Exit...); err != nil {
		errs = append(errs, err)
	}
	if state.Actions, err = l.actions.Resolve(sd.Actions...); err != nil {
		errs = append(errs, err)
	}
	if kind == domain.StateSubflow {
		state.Subflow = &domain.SubflowSpec{FlowID: sd.Flow, Input: sd.Input, Output: sd.Output}
		state.Output = nil
	}
	for _, td := range sd.Transitions {
		t, err := l.buildTransition(td)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		state.Transitions = append(state.Transitions, t)
	}
	for _, hd := range sd.ExceptionHandlers {
		state.ExceptionHandlers = append(state.ExceptionHandlers, buildHandler(hd))
	}
	return state, errors.Join(errs...)
}

func (l *Locator) buildTransition(td TransitionDocument) (*domain.Transition, error) {
	on, err := domain.ParseCriteria(td.On, l.exprs.Compiler(), l.actions.LookupCriteria)
	if err != nil {
		return nil, fmt.Errorf("criteria %q: %w", td.On, err)
	}
	t := &domain.Transition{On: on}

	to := strings.TrimSpace(td.To)
	switch {
	case to == "":
	case strings.HasPrefix(to, "${") && strings.HasSuffix(to, "}"):
		if t.To, err = l.exprs.Target(to[2 : len(to)-1]); err != nil {
			return nil, fmt.Errorf("target %q: %w", td.To, err)
		}
	default:
		t.To = domain.To(to)
	}

	if t.Actions, err = l.actions.Resolve(td.Actions...); err != nil {
		return nil, err
	}
	return t, nil
}

func buildHandler(hd HandlerDocument) *domain.ExceptionHandler {
	switch {
	case hd.Configuration:
		return &domain.ExceptionHandler{
			Name:        "configuration",
			Matches:     domain.IsConfigurationFailure,
			TargetState: hd.To,
		}
	case hd.Contains != "":
		return &domain.ExceptionHandler{
			Name: "contains:" + hd.Contains,
			Matches: func(err error) bool {
				return strings.Contains(err.Error(), hd.Contains)
			},
			TargetState: hd.To,
		}
	default:
		return domain.HandleAny(hd.To)
	}
}

// decode maps a raw document entry onto out, rejecting unknown keys.
func decode(raw any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// deepCopy clones maps and slices so sessions never share variable values.
func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = deepCopy(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = deepCopy(sub)
		}
		return out
	default:
		return v
	}
}

func trimExtension(id string) string {
	if ext := filepath.Ext(id); ext != "" {
		id = strings.TrimSuffix(id, ext)
	}
	return filepath.ToSlash(id)
}
