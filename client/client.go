// Package client is a minimal depot wire client, used to drive a depot
// process from integration tests the same way a real peer would: dial,
// read the server's IM line, then send and receive raw protocol lines.
package client

import (
	"bufio"
	"net"
)

// Client holds a single connection to a depot and the buffered reader
// used to read its responses line by line.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

// New dials addr and returns a Client ready to exchange lines.
func New(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send writes line to the depot, appending the trailing newline the wire
// protocol requires.
func (c *Client) Send(line string) error {
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// ReadLine reads a single newline-terminated line, with the trailing
// newline stripped.
func (c *Client) ReadLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return line[:len(line)-1], nil
}
