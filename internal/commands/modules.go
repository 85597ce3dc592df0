package commands

import "strings"

// Lister reports the feature modules that finished loading.
type Lister interface {
	Loaded() []string
}

// NewModulesHandler builds the handler that lists loaded modules.
func NewModulesHandler(lister Lister) Handler {
	return func(ctx *Context) error {
		loaded := lister.Loaded()
		if len(loaded) == 0 {
			return ctx.Reply("No modules loaded.")
		}
		return ctx.Reply("Loaded modules: " + strings.Join(loaded, ", "))
	}
}
