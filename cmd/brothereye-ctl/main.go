package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"brothereye/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.SocketPath, "IPC socket path")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: brothereye-ctl [--socket path] <listen_for_wake_word|listen_now|stop|quit|status|forget>")
	}
	cli.Parse()

	cmd := "listen_now"
	if cli.NArg() > 0 {
		cmd = cli.Arg(0)
	}

	rep, err := ipc.SendCommand(*socket, cmd)
	if err != nil {
		fmt.Println("brothereye not running or refused:", err)
		os.Exit(1)
	}
	fmt.Println(rep.State)
}
