package bot

import (
	"strings"

	"github.com/armon/go-radix"
)

// Command is a control utterance.
type Command int

const (
	CommandNone Command = iota
	CommandReset
	CommandHistory
	CommandAmend
)

type route struct {
	cmd     Command
	takeArg bool
}

// Router maps control flags to commands by longest prefix.
type Router struct {
	tree *radix.Tree
}

func NewRouter() *Router {
	r := &Router{tree: radix.New()}
	r.handle(CommandReset, false, "-r", "--reset")
	r.handle(CommandHistory, false, "-h", "--history")
	r.handle(CommandAmend, true, "-a", "--amend")
	return r
}

func (r *Router) handle(cmd Command, takeArg bool, flags ...string) {
	for _, f := range flags {
		r.tree.Insert(f, route{cmd: cmd, takeArg: takeArg})
	}
}

// Match resolves an utterance. Flags without arguments must match the whole
// utterance; flags with one must be followed by a space, and the argument is
// everything after that single space.
func (r *Router) Match(utterance string) (Command, string) {
	prefix, v, ok := r.tree.LongestPrefix(utterance)
	if !ok {
		return CommandNone, ""
	}
	rt := v.(route)
	rest := utterance[len(prefix):]

	if !rt.takeArg {
		if rest != "" {
			return CommandNone, ""
		}
		return rt.cmd, ""
	}
	if rest == "" {
		return rt.cmd, ""
	}
	arg, found := strings.CutPrefix(rest, " ")
	if !found {
		return CommandNone, ""
	}
	return rt.cmd, arg
}
