package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
)

// deferredCommand is a stored inner command, owned by the session that
// received the Defer, keyed for later Execute replay.
type deferredCommand struct {
	key       int
	line      string // the inner command, wire-formatted, without the outer Defer:key: prefix
	completed bool
}

// session owns one bidirectional stream to a peer: its own deferred
// command list, and the handshake bookkeeping the liveness gate needs.
// Apart from out, which the registry hands to other sessions' Transfer
// handlers once this peer is a neighbour, nothing on session is shared
// with any other session; only the registry and the dialer are shared.
type session struct {
	depot  *depot
	conn   net.Conn
	out    chan string   // outbound wire lines, drained by writeLoop
	closed chan struct{} // closed once this session is tearing down

	imSent     bool
	imReceived bool
	msgCount   int

	deferred []deferredCommand

	log *slog.Logger
}

// newSession wraps conn in a session and immediately queues this depot's
// IM line as the handshake's first message.
//
// out is never closed, even after the session ends: once registered, a
// neighbour is never removed, so its send channel may be written to by
// any other session's Transfer handler for the life of the process,
// and closing it here would risk a send-on-closed-channel
// panic in a goroutine this session doesn't own. writeLoop instead stops
// via the session-local closed channel, and late sends into out simply
// queue up and are dropped once the buffer fills — consistent with
// Transfer being best-effort and fire-and-forget.
func newSession(d *depot, conn net.Conn) *session {
	s := &session{
		depot:  d,
		conn:   conn,
		out:    make(chan string, 16),
		closed: make(chan struct{}),
		log:    d.log.With("remote", conn.RemoteAddr()),
	}
	s.out <- encodeIM(d.port, d.name)
	s.imSent = true
	return s
}

// run drives the session's write loop and read loop until the stream
// closes or a protocol violation ends it. It never returns an error to
// its caller: all failures are terminal for this session only.
func (s *session) run() {
	defer s.conn.Close()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop()
	}()
	s.readLoop()
	close(s.closed)
	<-done
}

// writeLoop flushes every queued outbound line to the peer, in order,
// until the session closes or a write fails.
func (s *session) writeLoop() {
	w := bufio.NewWriter(s.conn)
	for {
		select {
		case line := <-s.out:
			if _, err := w.WriteString(line); err != nil {
				s.log.Debug("write failed", "err", err)
				return
			}
			if err := w.Flush(); err != nil {
				s.log.Debug("flush failed", "err", err)
				return
			}
		case <-s.closed:
			return
		}
	}
}

// readLoop reads one line at a time, enforcing the overlong-line limit
// and the post-handshake liveness gate, dispatching every well-formed
// line to the verb dispatcher.
func (s *session) readLoop() {
	r := bufio.NewReaderSize(s.conn, maxLineLength)
	for {
		line, err := readLine(r)
		if err != nil {
			s.log.Debug("session closed", "err", err)
			return
		}

		if s.msgCount > 1 && !(s.imSent && s.imReceived) {
			s.log.Debug("handshake not complete after liveness window, closing")
			return
		}

		s.dispatch(line)
		s.msgCount++
	}
}

// readLine reads a single newline-terminated line, stripped of its
// trailing newline and any carriage return, enforcing maxLineLength.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(line) > maxLineLength {
		return "", fmt.Errorf("line exceeds %d bytes", maxLineLength)
	}
	line = line[:len(line)-1]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, nil
}

// dispatch parses line and, if it is a well-formed verb, routes it to
// the matching handler. Malformed lines are silently discarded; the
// session continues.
func (s *session) dispatch(line string) {
	cmd := parseLine(line)
	if !wellFormed(cmd) {
		return
	}
	switch cmd.verb {
	case verbIM:
		s.handleIM(cmd.args)
	case verbConnect:
		s.handleConnect(cmd.args)
	case verbDeliver:
		s.handleDeliver(cmd.args)
	case verbWithdraw:
		s.handleWithdraw(cmd.args)
	case verbTransfer:
		s.handleTransfer(cmd.args)
	case verbDefer:
		s.handleDefer(cmd.args)
	case verbExecute:
		s.handleExecute(cmd.args)
	}
}

// handleIM validates and processes an introduction line. The first valid
// IM completes the handshake (imReceived flips exactly once); if its name
// or port duplicates an existing neighbour, nothing is registered. A
// repeated IM within the same session is a no-op.
func (s *session) handleIM(args []string) {
	if s.imReceived {
		return
	}
	port, ok := validPositiveInt(args[0])
	if !ok {
		return
	}
	name := args[1]
	if !validName(name) {
		return
	}
	s.imReceived = true
	if s.depot.registry.addNeighbour(name, port, s.out) {
		s.log.Debug("neighbour registered", "name", name, "port", port)
	}
}

// handleConnect asks the depot's dialer to open an outbound session to
// the requested port. Only honored once this session's own IM has been
// received, per the handshake-gated Connect rule.
func (s *session) handleConnect(args []string) {
	if !s.imReceived {
		return
	}
	port, ok := validPositiveInt(args[0])
	if !ok {
		return
	}
	s.depot.dial(port)
}

func (s *session) handleDeliver(args []string) {
	qty, ok := validPositiveInt(args[0])
	if !ok {
		return
	}
	good := args[1]
	if !validName(good) {
		return
	}
	s.depot.registry.deliver(good, qty)
}

func (s *session) handleWithdraw(args []string) {
	qty, ok := validPositiveInt(args[0])
	if !ok {
		return
	}
	good := args[1]
	if !validName(good) {
		return
	}
	s.depot.registry.withdraw(good, qty)
}

// handleTransfer, if the target is a known neighbour, withdraws locally
// and then sends it a Deliver line over that neighbour's own outbound
// channel; for an unknown target it does nothing. No atomicity is
// guaranteed across the two events.
func (s *session) handleTransfer(args []string) {
	qty, ok := validPositiveInt(args[0])
	if !ok {
		return
	}
	good := args[1]
	if !validName(good) {
		return
	}
	target := args[2]
	if !validName(target) {
		return
	}
	n, found := s.depot.registry.lookupNeighbour(target)
	if !found {
		return
	}
	s.depot.registry.withdraw(good, qty)
	select {
	case n.send <- encodeDeliver(qty, good):
	default:
		s.log.Debug("neighbour outbound channel full, dropping transfer", "target", target)
	}
}

// handleDefer stores the inner command verbatim, as it would appear on
// the wire, under key. Key must be a positive integer; the inner command
// is not validated here, only when Execute replays it through dispatch.
func (s *session) handleDefer(args []string) {
	key, ok := validPositiveInt(args[0])
	if !ok {
		return
	}
	inner := args[1:]
	if len(inner) == 0 {
		return
	}
	line := joinColon(inner)
	s.deferred = append(s.deferred, deferredCommand{key: key, line: line})
}

// handleExecute replays every not-completed deferred command stored
// under key, in insertion order, marking each completed as it runs.
// Defer commands issued by a replayed command are appended to the same
// list and are eligible for a later Execute of their own key.
func (s *session) handleExecute(args []string) {
	key, ok := validPositiveInt(args[0])
	if !ok {
		return
	}
	// Snapshot the indices to run before replaying: a replayed command
	// may itself append new deferred entries, and those must not be
	// picked up by this Execute.
	n := len(s.deferred)
	for i := 0; i < n; i++ {
		if s.deferred[i].key != key || s.deferred[i].completed {
			continue
		}
		s.deferred[i].completed = true
		s.dispatch(s.deferred[i].line)
	}
}

// joinColon re-joins command fields with ':' for storage and re-dispatch.
func joinColon(fields []string) string {
	out := fields[0]
	for _, f := range fields[1:] {
		out += ":" + f
	}
	return out
}
