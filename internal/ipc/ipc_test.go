package ipc

import (
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")

	got := make(chan string, 1)
	srv, err := StartServer(path, func(msg ControlMessage) Reply {
		got <- msg.Cmd
		if msg.Cmd == "bogus" {
			return Reply{Error: "unknown command"}
		}
		return Reply{OK: true, State: "listening"}
	})
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	defer srv.Close()

	rep, err := SendCommand(path, "listen_now")
	if err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if cmd := <-got; cmd != "listen_now" {
		t.Errorf("handler got %q", cmd)
	}
	if !rep.OK || rep.State != "listening" {
		t.Errorf("reply = %+v", rep)
	}

	if _, err := SendCommand(path, "bogus"); err == nil || err.Error() != "unknown command" {
		t.Errorf("bogus command err = %v", err)
	}
}

func TestNoServer(t *testing.T) {
	if _, err := SendCommand(filepath.Join(t.TempDir(), "none.sock"), "stop"); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestCloseStopsServing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")
	srv, err := StartServer(path, func(ControlMessage) Reply { return Reply{OK: true} })
	if err != nil {
		t.Fatal(err)
	}
	srv.Close()

	if _, err := SendCommand(path, "stop"); err == nil {
		t.Fatal("closed server still answering")
	}
}
