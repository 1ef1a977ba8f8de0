// Package lua provides the sandboxed Lua runtime used for console filtering.
//
// This package wraps the gopher-lua library to provide:
//   - Sandboxed Lua state management
//   - Execution timeouts
//   - A console line filter driven by a user script
//
// # State
//
// The State type manages a Lua runtime with sandboxing:
//
//	state := lua.NewState(lua.WithExecutionTimeout(time.Second))
//	defer state.Close()
//
//	if err := state.DoFile("filter.lua"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Sandbox
//
// The Sandbox restricts Lua code execution by:
//   - Opening only the base, table, string and math libraries
//   - Removing functions that load code (dofile, loadfile, load, require)
//   - Routing print to the host logger
//
// # Filter
//
// A filter script defines a global function:
//
//	function filter(level, text, url)
//	    if level == "debug" then
//	        return false              -- drop the line
//	    end
//	    return text:gsub("token=%w+", "token=***")  -- rewrite it
//	end
//
// Returning nil or true keeps the line unchanged.
package lua
