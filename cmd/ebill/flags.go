package main

import (
	"gopkg.in/urfave/cli.v1"

	"github.com/bitcredit/ebill/config"
)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Value: "./.ebill",
		Usage: "directory for the node's key and on-disk stores",
	}
	listenAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "127.0.0.1:8669",
		Usage: "HTTP listen address for the bill/notification/peer API",
	}
	backendFlag = cli.StringFlag{
		Name:  "backend",
		Value: string(config.BackendDisk),
		Usage: "store backend: disk (sqlite+leveldb) or memory (demo, not durable)",
	}
	maintenanceIntervalFlag = cli.DurationFlag{
		Name:  "maintenance-interval",
		Value: config.DefaultMaintenanceInterval,
		Usage: "how often to poll the payment oracle and check deadlines",
	}
	ntpServerFlag = cli.StringFlag{
		Name:  "ntp-server",
		Value: "",
		Usage: "NTP server to check local clock drift against at startup; empty skips the check",
	}
	peerFlag = cli.StringSliceFlag{
		Name:  "peer",
		Usage: "known peer as node_id=http://host:port, repeatable",
	}
)
