package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLineVerbWithOneArg(t *testing.T) {
	cmd := parseLine("Execute:7")
	assert.Equal(t, "Execute", cmd.verb)
	assert.Equal(t, []string{"7"}, cmd.args)
}

func TestParseLineNoColons(t *testing.T) {
	cmd := parseLine("Ping")
	assert.Equal(t, "Ping", cmd.verb)
	assert.Empty(t, cmd.args)
}

func TestValidNameRejectsForbiddenChars(t *testing.T) {
	for _, bad := range []string{"has space", "has:colon", "has\nnewline", "has\rcr", ""} {
		assert.False(t, validName(bad), "expected %q to be rejected", bad)
	}
}

func TestValidNameAcceptsPlainNames(t *testing.T) {
	for _, good := range []string{"widget", "alpha", "sprocket-9"} {
		assert.True(t, validName(good))
	}
}

func TestValidPositiveIntRejectsNonPositive(t *testing.T) {
	for _, s := range []string{"0", "-5", "five", "5x", "", "5 "} {
		_, ok := validPositiveInt(s)
		assert.False(t, ok, "expected %q to be rejected", s)
	}
}

func TestValidPositiveIntAcceptsPositive(t *testing.T) {
	n, ok := validPositiveInt("42")
	assert.True(t, ok)
	assert.Equal(t, 42, n)
}

func TestWellFormedEnforcesArity(t *testing.T) {
	assert.True(t, wellFormed(command{verb: "IM", args: []string{"1234", "alpha"}}))
	assert.False(t, wellFormed(command{verb: "IM", args: []string{"1234"}}))
	assert.False(t, wellFormed(command{verb: "IM", args: []string{"1234", "alpha", "extra"}}))
	assert.True(t, wellFormed(command{verb: "Transfer", args: []string{"4", "widget", "beta"}}))
	assert.False(t, wellFormed(command{verb: "Unknown", args: nil}))
}

func TestWellFormedDeferAcceptsVariableTail(t *testing.T) {
	assert.True(t, wellFormed(command{verb: "Defer", args: []string{"7", "Deliver", "2", "bolt"}}))
	assert.True(t, wellFormed(command{verb: "Defer", args: []string{"7", "Execute", "3"}}))
	assert.False(t, wellFormed(command{verb: "Defer", args: []string{"7"}}))
}

func TestEncodeDeliverAndIM(t *testing.T) {
	assert.Equal(t, "Deliver:4:widget\n", encodeDeliver(4, "widget"))
	assert.Equal(t, "IM:9999:alpha\n", encodeIM(9999, "alpha"))
}
