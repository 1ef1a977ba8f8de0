package lua

import (
	"fmt"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/jsinspect/internal/integration/inspector/console"
)

// filterFunc is the global the script must define.
const filterFunc = "filter"

// Filter passes console lines through a user Lua function.
type Filter struct {
	state  *State
	logger *slog.Logger
}

// NewFilter loads the filter script at path.
func NewFilter(path string, opts ...StateOption) (*Filter, error) {
	state := NewState(opts...)
	if err := state.DoFile(path); err != nil {
		state.Close()
		return nil, fmt.Errorf("load filter %s: %w", path, err)
	}
	return newFilter(state)
}

// NewFilterFromString loads a filter from Lua source.
func NewFilterFromString(src string, opts ...StateOption) (*Filter, error) {
	state := NewState(opts...)
	if err := state.DoString(src); err != nil {
		state.Close()
		return nil, fmt.Errorf("load filter: %w", err)
	}
	return newFilter(state)
}

func newFilter(state *State) (*Filter, error) {
	if !state.HasFunction(filterFunc) {
		state.Close()
		return nil, ErrNoFilterFunction
	}
	return &Filter{state: state, logger: state.logger}, nil
}

// Apply runs the filter over line. It returns false when the line should be
// dropped. Script errors keep the line unchanged.
func (f *Filter) Apply(line console.Line) (console.Line, bool) {
	url := ""
	if line.Location != nil {
		url = line.Location.URL
	}

	results, err := f.state.Call(filterFunc,
		lua.LString(line.Level), lua.LString(line.Text), lua.LString(url))
	if err != nil {
		f.logger.Warn("console filter failed", "error", err)
		return line, true
	}
	if len(results) == 0 {
		return line, true
	}

	switch v := results[0].(type) {
	case lua.LBool:
		return line, bool(v)
	case lua.LString:
		line.Text = string(v)
		return line, true
	case *lua.LNilType:
		return line, true
	default:
		f.logger.Warn("console filter returned unexpected value", "type", v.Type().String())
		return line, true
	}
}

// Close releases the Lua state.
func (f *Filter) Close() error {
	return f.state.Close()
}
