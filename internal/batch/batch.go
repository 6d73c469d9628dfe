// Package batch generalizes the pool-dispatch model to arbitrary CLI
// commands: a fixed command prefix is combined with successive groups of
// parameters, and the resulting command lines are executed across a bounded
// pool of local processes. The per-group exit statuses are collected into a
// run summary just like feature outcomes.
package batch

import (
	"fmt"
	"strconv"
)

// SplitArgs separates a raw trailing argument list into the common command
// prefix and the batched parameters at the first "--" separator. Without a
// separator everything is the common prefix and there are no parameters.
func SplitArgs(args []string) (common, params []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

// SplitGroups partitions params into consecutive groups of at most
// groupsize, preserving order.
func SplitGroups(params []string, groupsize int) ([][]string, error) {
	if groupsize < 1 {
		return nil, fmt.Errorf("groupsize must be >= 1, got %d", groupsize)
	}
	var groups [][]string
	for i := 0; i < len(params); i += groupsize {
		end := i + groupsize
		if end > len(params) {
			end = len(params)
		}
		groups = append(groups, params[i:end])
	}
	return groups, nil
}

// BuildCommands combines the common prefix with each group into full
// command lines. With no groups the common prefix alone is run once.
func BuildCommands(common []string, groups [][]string) [][]string {
	if len(groups) == 0 {
		return [][]string{append([]string(nil), common...)}
	}
	cmds := make([][]string, len(groups))
	for i, g := range groups {
		cmd := make([]string, 0, len(common)+len(g))
		cmd = append(cmd, common...)
		cmd = append(cmd, g...)
		cmds[i] = cmd
	}
	return cmds
}

// WithLogin appends session login arguments to the common prefix so each
// spawned command joins the already-established server session instead of
// prompting for credentials.
func WithLogin(common []string, host string, port int, sessionID string) []string {
	out := append([]string(nil), common...)
	return append(out, "-s", host, "-p", strconv.Itoa(port), "-k", sessionID)
}
