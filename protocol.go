// Package main implements the depot wire protocol: newline-terminated,
// colon-delimited verb lines exchanged between depot peers.
package main

import (
	"strconv"
	"strings"
)

// maxLineLength bounds a single wire message to 256 bytes.
const maxLineLength = 256

// verb names recognized on the wire.
const (
	verbConnect  = "Connect"
	verbIM       = "IM"
	verbDeliver  = "Deliver"
	verbWithdraw = "Withdraw"
	verbTransfer = "Transfer"
	verbDefer    = "Defer"
	verbExecute  = "Execute"
)

// command is a parsed wire line: a verb plus its colon-separated fields.
type command struct {
	verb string
	args []string
}

// forbiddenChars are excluded from good and depot names per the data model.
const forbiddenChars = " \n\r:"

// parseLine splits a single line (without its trailing newline) into a
// command by ':'. A line with zero colons is a bare verb; each additional
// colon yields one more argument.
func parseLine(line string) command {
	fields := strings.Split(line, ":")
	return command{verb: fields[0], args: fields[1:]}
}

// validName reports whether s is non-empty and free of the forbidden
// characters shared by good names and depot names.
func validName(s string) bool {
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, forbiddenChars)
}

// validPositiveInt parses s as a positive integer, rejecting any
// trailing non-digit content so no partial parses sneak through.
func validPositiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// arity is the exact argument count each verb requires. A line whose
// argument count doesn't match is a parse failure: it is silently
// discarded by the session, never dispatched.
var arity = map[string]int{
	verbConnect:  1,
	verbIM:       2,
	verbDeliver:  2,
	verbWithdraw: 2,
	verbTransfer: 3,
	verbExecute:  1,
	// Defer has a variable tail (the inner command's own args); its
	// minimum count is checked by wellFormed rather than listed here.
}

// wellFormed reports whether cmd is a recognized verb with the right
// arity. Defer is accepted here with any arg count >= 2 (key, inner verb,
// and the inner verb's own arguments); the inner command itself is only
// validated when Execute replays it.
func wellFormed(cmd command) bool {
	if cmd.verb == verbDefer {
		return len(cmd.args) >= 2
	}
	want, known := arity[cmd.verb]
	return known && len(cmd.args) == want
}

// encodeDeliver formats a Deliver line as it appears on the wire,
// including the trailing newline.
func encodeDeliver(qty int, good string) string {
	return verbDeliver + ":" + strconv.Itoa(qty) + ":" + good + "\n"
}

// encodeIM formats this depot's introduction line.
func encodeIM(port int, name string) string {
	return verbIM + ":" + strconv.Itoa(port) + ":" + name + "\n"
}
