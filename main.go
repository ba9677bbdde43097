// main.go
package main

import (
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"binchat/internal"
)

func main() {
	server := internal.NewServer(
		internal.WithHost(Config.IPAddress),
		internal.WithIdleTimeout(Config.IdleTimeout),
		internal.WithWriteTimeout(Config.WriteTimeout),
		internal.WithOutboxSize(Config.OutboxSize),
		internal.WithMaxClients(Config.MaxClients),
		internal.WithLogFile(Config.LogFile),
	)
	defer server.Stop()

	if err := server.Start(Config.Port); err != nil {
		if errors.Is(err, internal.ErrBind) {
			color.New(color.FgRed).Println("[USAGE]: ./binchat -port $port")
		}
		log.Fatal(err)
	}

	if Config.WebSocketAddr != "" {
		if err := server.ServeWebSocket(Config.WebSocketAddr); err != nil {
			server.Stop()
			log.Fatal(err)
		}
	}

	if Config.UI {
		// the monitor owns the terminal, keep log output off it
		log.SetOutput(io.Discard)
		if err := runMonitor(server); err != nil {
			log.SetOutput(os.Stderr)
			log.Println(err)
		}
		return
	}

	color.New(color.FgGreen).Printf("Chat server listening on %s\n", server.Addr())
	color.New(color.FgHiBlack).Println("Press Ctrl-C to stop...")

	stopped := make(chan struct{})
	go func() {
		server.Wait()
		close(stopped)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
		log.Println("Got stop signal")
	case <-stopped:
		log.Println("Listener closed")
	}
}
