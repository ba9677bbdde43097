package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"binchat/internal"
)

type (
	// Configuration - server configuration
	Configuration struct {
		// IPAddress - bind the address
		IPAddress string
		// Port - bind the port
		Port string
		// IdleTimeout - idle period before client is disconnected, zero keeps clients forever
		IdleTimeout time.Duration
		// WriteTimeout - bound for a single frame write
		WriteTimeout time.Duration
		// OutboxSize - frames queued per client before it is dropped as stalled
		OutboxSize int
		// MaxClients - active sessions limit, zero means unlimited
		MaxClients int
		// LogFile - activity log path, empty disables it
		LogFile string
		// WebSocketAddr - address of the WebSocket gateway, empty disables it
		WebSocketAddr string
		// UI - run the terminal monitor
		UI bool
	}
)

var (
	// Config - current configuration of the server
	Config = Configuration{
		Port:         internal.DefaultPort,
		WriteTimeout: 10 * time.Second,
		OutboxSize:   64,
		LogFile:      "chat.log",
	}

	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))
)

func init() {
	out := flag.CommandLine.Output()
	printUsage := func() {
		fmt.Fprintf(out, "Launch binary chat server over TCP\n\n\t%s [options]\nOptions:\n\n", BinaryName)
		flag.PrintDefaults()
		fmt.Fprint(out, "\n")
	}
	printError := func(msg string) {
		fmt.Fprintf(out, "%s error:\n\n\t%s\n", BinaryName, msg)
	}
	flag.Usage = printUsage

	help := false
	flag.BoolVar(&help, "help", false, "Print usage help")
	flag.StringVar(&Config.IPAddress, "ip", "", "Listen address")
	flag.StringVar(&Config.Port, "port", Config.Port, "Listen port")
	flag.DurationVar(&Config.IdleTimeout, "idle-timeout", 0, "Idle duration before client is disconnected, 0 disables it")
	flag.DurationVar(&Config.WriteTimeout, "write-timeout", Config.WriteTimeout, "Bound for a single frame write")
	flag.IntVar(&Config.OutboxSize, "outbox", Config.OutboxSize, "Frames queued per client before it is dropped")
	flag.IntVar(&Config.MaxClients, "max-clients", 0, "Active sessions limit, 0 means unlimited")
	flag.StringVar(&Config.LogFile, "log", Config.LogFile, "Activity log file, empty disables it")
	flag.StringVar(&Config.WebSocketAddr, "ws", "", "WebSocket gateway address, e.g. :8080")
	flag.BoolVar(&Config.UI, "ui", false, "Run the terminal monitor")

	flag.Parse()

	if help {
		printUsage()
		os.Exit(0)
	}
	if flag.NArg() > 1 {
		printUsage()
		os.Exit(1)
	}
	// the port may also be given positionally, as in `binchat 65432`
	if flag.NArg() == 1 {
		Config.Port = flag.Arg(0)
	}

	if Config.IdleTimeout < 0 {
		printError("idle-timeout value should be greater or equal 0")
		os.Exit(1)
	}
	if Config.OutboxSize < 1 {
		printError("outbox value should be greater 0")
		os.Exit(1)
	}
	if Config.MaxClients < 0 {
		printError("max-clients value should be greater or equal 0")
		os.Exit(1)
	}
}
