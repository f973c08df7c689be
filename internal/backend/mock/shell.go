package mock

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cruciblehq/cruxpkg/internal/backend"
)

// Interprets a tiny subset of shell against the environment's filesystem.
//
// Commands may be chained with "&&". Variables ($NAME and ${NAME}) are
// expanded from the request environment plus PWD, which is the request
// workdir. Supported commands:
//
//	true, false, exit N, echo ARGS..., touch PATH..., mkdir [-p] PATH...,
//	rm [-rf] PATH..., test [!] -f|-d|-e PATH, test A = B, test A != B
//
// Unknown commands exit with 127, like a real shell.
func Interpret(ctx context.Context, env *Env, req backend.ExecRequest) (int, string, error) {
	vars := map[string]string{"PWD": req.Workdir}
	for _, kv := range req.Env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	var out strings.Builder
	for _, cmd := range strings.Split(req.Command, "&&") {
		if err := ctx.Err(); err != nil {
			return 0, out.String(), err
		}
		args := fields(os.Expand(cmd, func(k string) string { return vars[k] }))
		if len(args) == 0 {
			continue
		}
		if code := run(env, req.Workdir, args, &out); code != 0 {
			return code, out.String(), nil
		}
	}
	return 0, out.String(), nil
}

// Runs one command, returning its exit code.
func run(env *Env, wd string, args []string, out *strings.Builder) int {
	name, args := args[0], args[1:]
	switch name {
	case "true", ":":
		return 0
	case "false":
		return 1
	case "exit":
		if len(args) == 0 {
			return 0
		}
		code, err := strconv.Atoi(args[0])
		if err != nil {
			return 2
		}
		return code
	case "echo":
		fmt.Fprintln(out, strings.Join(args, " "))
		return 0
	case "touch":
		for _, p := range args {
			if _, ok := env.Stat(clean(wd, p)); !ok {
				env.WriteFile(clean(wd, p), nil, 0o644)
			}
		}
		return 0
	case "mkdir":
		for _, p := range args {
			if p != "-p" {
				env.MkdirAll(clean(wd, p))
			}
		}
		return 0
	case "rm":
		for _, p := range args {
			if !strings.HasPrefix(p, "-") {
				env.RemoveAll(clean(wd, p))
			}
		}
		return 0
	case "test", "[":
		if name == "[" && len(args) > 0 && args[len(args)-1] == "]" {
			args = args[:len(args)-1]
		}
		if evalTest(env, wd, args) {
			return 0
		}
		return 1
	default:
		fmt.Fprintf(out, "mock: %s: command not found\n", name)
		return 127
	}
}

// Evaluates the arguments of a test command.
func evalTest(env *Env, wd string, args []string) bool {
	if len(args) > 0 && args[0] == "!" {
		return !evalTest(env, wd, args[1:])
	}
	switch {
	case len(args) == 2:
		f, ok := env.Stat(clean(wd, args[1]))
		switch args[0] {
		case "-e":
			return ok
		case "-f":
			return ok && !f.Dir && f.Link == ""
		case "-d":
			return ok && f.Dir
		}
	case len(args) == 3 && args[1] == "=":
		return args[0] == args[2]
	case len(args) == 3 && args[1] == "!=":
		return args[0] != args[2]
	}
	return false
}

// Splits a command into words, honoring single and double quotes.
func fields(s string) []string {
	var (
		words  []string
		word   strings.Builder
		quote  rune
		inWord bool
	)
	for _, r := range s {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			word.WriteRune(r)
		case r == '"' || r == '\'':
			quote, inWord = r, true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		words = append(words, word.String())
	}
	return words
}
