package lua

import (
	"strings"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// unsafeGlobals are removed from every state.
var unsafeGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"module",
	"collectgarbage",
}

// installSandbox removes globals that reach the file system and routes
// print to the logger.
func installSandbox(L *lua.LState, logger logrus.FieldLogger) {
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		logger.WithField("source", "lua").Info(strings.Join(parts, "\t"))
		return 0
	}))
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
