// Package ipc carries control commands over a unix socket, one JSON
// request and one JSON reply per connection.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const SocketPath = "/tmp/brothereye.sock"

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

type Reply struct {
	OK    bool   `json:"ok"`
	State string `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

type Handler func(ControlMessage) Reply

type Server struct {
	ln   net.Listener
	path string
}

// StartServer replaces any stale socket at path and serves until Close.
func StartServer(path string, handler Handler) (*Server, error) {
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	srv := &Server{ln: ln, path: path}
	go srv.serve(handler)
	return srv, nil
}

func (srv *Server) serve(handler Handler) {
	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("ipc accept", "err", err)
			continue
		}
		go handleConn(conn, handler)
	}
}

func (srv *Server) Close() error {
	err := srv.ln.Close()
	os.Remove(srv.path)
	return err
}

func handleConn(conn net.Conn, handler Handler) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Debug("ipc decode", "err", err)
		json.NewEncoder(conn).Encode(Reply{Error: "malformed request"})
		return
	}

	log.Debug("ipc command", "cmd", msg.Cmd)
	json.NewEncoder(conn).Encode(handler(msg))
}

func SendCommand(path, cmd string) (Reply, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return Reply{}, fmt.Errorf("send: %w", err)
	}

	var rep Reply
	if err := json.NewDecoder(conn).Decode(&rep); err != nil {
		return Reply{}, fmt.Errorf("reply: %w", err)
	}
	if !rep.OK && rep.Error != "" {
		return rep, errors.New(rep.Error)
	}
	return rep, nil
}
