/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package transport abstracts the byte stream a session reads packets
// from and writes packets to, so internal/session does not care
// whether a client arrived over raw TCP/TLS or a WebSocket.
package transport

import (
	"io"
	"net"
	"time"
)

// Conn is the minimal surface internal/session needs from a client
// connection: it behaves like a net.Conn with deadline support, which
// both the raw TCP adapter below and the WebSocket adapter in
// websocket.go satisfy.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

// tcpConn is the identity adapter for a raw net.Conn; it exists so
// that internal/server always hands internal/session a transport.Conn,
// never a bare net.Conn, keeping the session package transport-agnostic.
type tcpConn struct {
	net.Conn
}

// NewTCPConn wraps a raw TCP/TLS connection as a transport.Conn.
func NewTCPConn(c net.Conn) Conn {
	return tcpConn{c}
}
