// Command ebill runs a single e-bill node: the HTTP API (bill
// operations, notification long-poll, inbound peer events) plus a
// background maintenance sweep that polls the payment oracle and
// times out overdue waits. Flag/command layout follows
// tos-network-gtos/cmd/toskey's cli.App shape, translated from
// urfave/cli/v2 to the gopkg.in/urfave/cli.v1 API this module
// actually depends on.
package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v1"
)

var gitCommit = ""

func main() {
	app := cli.NewApp()
	app.Name = "ebill"
	app.Usage = "electronic bill of exchange node"
	app.Version = fmt.Sprintf("0.1.0-%s", gitCommit)
	app.Flags = []cli.Flag{
		dataDirFlag,
		listenAddrFlag,
		backendFlag,
		maintenanceIntervalFlag,
		ntpServerFlag,
		peerFlag,
	}
	app.Action = runNode

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
