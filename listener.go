package main

import (
	"net"
	"strconv"
)

// listen binds an ephemeral TCP port on all interfaces and returns the
// bound net.Listener along with the port number assigned by the kernel.
func listen() (net.Listener, int, error) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return nil, 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	return ln, port, nil
}

// acceptLoop accepts connections indefinitely, spawning a session for
// each. It returns on the first Accept error (for example once ln is
// closed), reporting that error to its caller (an errgroup) so the rest
// of the process can shut down rather than leaking the reporter goroutine.
func (d *depot) acceptLoop(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		d.log.Debug("accepted connection", "remote", conn.RemoteAddr())
		go newSession(d, conn).run()
	}
}

// dial opens an outbound connection to port on localhost and starts a
// session on it, in the "send IM" state just like an accepted session.
// A failed dial is silently ignored: Connect is fire-and-forget. Dialing
// happens in its own goroutine so a slow or hanging peer never blocks
// the session that issued the Connect.
func (d *depot) dial(port int) {
	go func() {
		conn, err := net.Dial("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
		if err != nil {
			d.log.Debug("dial failed", "port", port, "err", err)
			return
		}
		newSession(d, conn).run()
	}()
}
