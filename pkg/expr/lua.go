package expr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"

	"github.com/aretw0/webflow/pkg/domain"
)

const (
	statePoolSize    = 10
	globalTableIndex = -2
	tableIndex       = -3
	argLocalTemplate = "local %s = select(%d, ...)"
	globalTableName  = "_G"
)

var (
	ErrLoad      = errors.New("lua load error")
	ErrExecution = errors.New("lua execution error")
	// ErrNotString is returned when a target expression yields a non-string value.
	ErrNotString = errors.New("expression did not yield a string")
)

// argNames are the locals every expression can read. Each scope is a table
// snapshot taken when the expression runs; model merges them most local first.
var argNames = []string{"event", "model", "request", "flash", "flow", "conversation"}

var excluded = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

// Env compiles and evaluates Lua expressions in a sandbox. Compiled
// expressions are cached by source, and Lua states are pooled.
// Safe for concurrent use.
type Env struct {
	statePool chan *lua.State
	cache     sync.Map
}

// Expression is a compiled Lua expression. As a domain.Criteria it matches
// when the expression is truthy.
type Expression struct {
	env      *Env
	source   string
	bytecode []byte
}

var _ domain.Criteria = (*Expression)(nil)

// NewEnv creates an expression environment.
func NewEnv() *Env {
	return &Env{
		statePool: make(chan *lua.State, statePoolSize),
	}
}

// Compile compiles a Lua expression such as `flow.attempts >= 3 and event.id == "retry"`.
func (e *Env) Compile(source string) (*Expression, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrLoad)
	}
	if v, ok := e.cache.Load(source); ok {
		return v.(*Expression), nil
	}

	locals := make([]string, len(argNames))
	for i, name := range argNames {
		locals[i] = fmt.Sprintf(argLocalTemplate, name, i+1)
	}
	src := strings.Join(locals, "\n") + "\nreturn (" + source + ")"

	L := lua.NewState()
	setupSandbox(L)
	if err := lua.LoadString(L, src); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrLoad, source, err)
	}
	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	x := &Expression{env: e, source: source, bytecode: buf.Bytes()}
	e.cache.Store(source, x)
	return x, nil
}

// Compiler adapts Compile to domain.ParseCriteria.
func (e *Env) Compiler() domain.ExpressionCompiler {
	return func(source string) (domain.Criteria, error) {
		return e.Compile(source)
	}
}

// Target compiles an expression that computes a state id. A nil result
// resolves to "", which re-renders the current view.
func (e *Env) Target(source string) (domain.TargetResolver, error) {
	x, err := e.Compile(source)
	if err != nil {
		return nil, err
	}
	return &target{x}, nil
}

func (x *Expression) Kind() domain.CriteriaKind { return domain.CriteriaExpression }

// Matches evaluates the expression against rc and reports its truthiness.
func (x *Expression) Matches(ctx context.Context, rc domain.RequestContext) (bool, error) {
	var ok bool
	err := x.run(ctx, rc, func(L *lua.State) {
		ok = L.ToBoolean(-1)
	})
	return ok, err
}

// Value evaluates the expression and converts the result to Go.
func (x *Expression) Value(ctx context.Context, rc domain.RequestContext) (any, error) {
	var v any
	err := x.run(ctx, rc, func(L *lua.State) {
		v = luaToGo(L, -1)
	})
	return v, err
}

func (x *Expression) String() string { return "${" + x.source + "}" }

func (x *Expression) run(ctx context.Context, rc domain.RequestContext, read func(*lua.State)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	L := x.env.getState()
	defer x.env.returnState(L)

	setupSandbox(L)
	if err := L.Load(bytes.NewReader(x.bytecode), "expression", "b"); err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	pushArgs(L, rc)
	if err := L.ProtectedCall(len(argNames), 1, 0); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrExecution, x, err)
	}
	read(L)
	L.Pop(1)
	return nil
}

type target struct {
	x *Expression
}

func (t *target) Resolve(ctx context.Context, rc domain.RequestContext) (string, error) {
	v, err := t.x.Value(ctx, rc)
	if err != nil {
		return "", err
	}
	switch id := v.(type) {
	case nil:
		return "", nil
	case string:
		return id, nil
	default:
		return "", fmt.Errorf("%w: %s yielded %T", ErrNotString, t.x, v)
	}
}

func (t *target) String() string { return t.x.String() }

func setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(globalTableName)
	for _, name := range excluded {
		L.PushNil()
		L.SetField(globalTableIndex, name)
	}
	L.Pop(1)
}

func (e *Env) getState() *lua.State {
	select {
	case L := <-e.statePool:
		return L
	default:
		return lua.NewState()
	}
}

func (e *Env) returnState(L *lua.State) {
	L.SetTop(0)
	select {
	case e.statePool <- L:
	default:
	}
}

// pushArgs pushes the locals in argNames order.
func pushArgs(L *lua.State, rc domain.RequestContext) {
	if ev := rc.LastEvent(); ev != nil {
		pushMap(L, map[string]any{
			"id":         ev.ID,
			"source":     ev.Source,
			"attributes": ev.Attributes,
		})
	} else {
		L.PushNil()
	}
	pushMap(L, rc.Model())
	pushMap(L, rc.RequestScope().AsMap())
	pushMap(L, rc.FlashScope().AsMap())
	pushMap(L, rc.FlowScope().AsMap())
	pushMap(L, rc.ConversationScope().AsMap())
}

func goToLua(L *lua.State, value any) {
	switch v := value.(type) {
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int64:
		L.PushInteger(int(v))
	case int32:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	case float32:
		L.PushNumber(float64(v))
	case []any:
		pushArray(L, v)
	case []string:
		arr := make([]any, len(v))
		for i, s := range v {
			arr[i] = s
		}
		pushArray(L, arr)
	case map[string]any:
		pushMap(L, v)
	case nil:
		L.PushNil()
	default:
		L.PushString(fmt.Sprintf("%v", v))
	}
}

func pushArray(L *lua.State, arr []any) {
	L.CreateTable(len(arr), 0)
	for i, item := range arr {
		L.PushInteger(i + 1)
		goToLua(L, item)
		L.SetTable(tableIndex)
	}
}

func pushMap(L *lua.State, m map[string]any) {
	L.CreateTable(0, len(m))
	for k, val := range m {
		L.PushString(k)
		goToLua(L, val)
		L.SetTable(tableIndex)
	}
}

func luaToGo(L *lua.State, index int) any {
	switch L.TypeOf(index) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return L.ToBoolean(index)
	case lua.TypeNumber:
		num, _ := L.ToNumber(index)
		if num == float64(int(num)) {
			return int(num)
		}
		return num
	case lua.TypeString:
		s, _ := L.ToString(index)
		return s
	default:
		return nil
	}
}
