// Command sessiond is the server entry point: it loads config.json, wires
// the TCP, telnet-sniffing TCP, and WebSocket listeners plus the session
// monitor, and serves until SIGINT/SIGTERM triggers a graceful shutdown.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/retroterm/sessiond/internal/config"
	"github.com/retroterm/sessiond/internal/handler"
	"github.com/retroterm/sessiond/internal/monitor"
	"github.com/retroterm/sessiond/internal/server"
	"github.com/retroterm/sessiond/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config.json")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Warning: could not load %s: %v", *configPath, err)
		log.Println("Using default configuration")
		// Load fills in every default when the file does not exist, and an
		// empty path never names an existing file.
		cfg, _ = config.Load("")
	}

	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		mon = monitor.New(cfg.Monitor.Path)
	}

	newHandler := func(r transport.Reader, w transport.Writer) handler.Handler {
		return handler.NewLineHandler(r, w)
	}

	tcpSrv := server.NewTCPServer(cfg.TCP.Host, cfg.TCP.Port, newHandler)
	tcpSrv.WelcomeMessage = cfg.WelcomeMessage
	tcpSrv.MaxConnections = cfg.MaxConnections
	tcpSrv.GraceTimeout = cfg.GraceTimeout()

	telnetSrv := server.NewTelnetTCPServer(cfg.TelnetTCP.Host, cfg.TelnetTCP.Port, func(r transport.Reader, w transport.Writer) handler.Handler {
		return handler.NewTelnetHandler(r, w)
	})
	telnetSrv.WelcomeMessage = cfg.WelcomeMessage
	telnetSrv.MaxConnections = cfg.MaxConnections
	telnetSrv.GraceTimeout = cfg.GraceTimeout()

	wsSrv := server.NewWSServer(cfg.WebSocket.Host, cfg.WebSocket.Port, cfg.WebSocket.Path, cfg.WebSocket.AllowOrigins, mon, func(r transport.Reader, w transport.Writer) handler.Handler {
		return handler.NewTelnetHandler(r, w)
	})
	wsSrv.WelcomeMessage = cfg.WelcomeMessage
	wsSrv.MaxConnections = cfg.MaxConnections
	wsSrv.ConnectionTimeout = cfg.ConnectionTimeout()
	wsSrv.GraceTimeout = cfg.GraceTimeout()

	if cfg.WebSocket.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(cfg.WebSocket.TLS.CertFile, cfg.WebSocket.TLS.KeyFile)
		if err != nil {
			log.Fatalf("sessiond: loading TLS cert/key: %v", err)
		}
		wsSrv.SetTLSConfig(&tls.Config{Certificates: []tls.Certificate{cert}})
	}

	errCh := make(chan error, 3)
	go func() { errCh <- tcpSrv.StartServer() }()
	go func() { errCh <- telnetSrv.StartServer() }()
	go func() { errCh <- wsSrv.StartServer() }()

	fmt.Printf("sessiond: tcp raw on %s:%d, telnet on %s:%d, websocket on %s:%d%s\n",
		cfg.TCP.Host, cfg.TCP.Port, cfg.TelnetTCP.Host, cfg.TelnetTCP.Port,
		cfg.WebSocket.Host, cfg.WebSocket.Port, cfg.WebSocket.Path)
	if mon != nil {
		fmt.Printf("sessiond: session monitor enabled at %s\n", cfg.Monitor.Path)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("sessiond: received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Printf("sessiond: a listener exited with an error: %v", err)
		}
	}

	grace := cfg.GraceTimeout()
	if err := tcpSrv.Shutdown(grace); err != nil {
		log.Printf("sessiond: tcp shutdown: %v", err)
	}
	if err := telnetSrv.Shutdown(grace); err != nil {
		log.Printf("sessiond: telnet shutdown: %v", err)
	}
	if err := wsSrv.Shutdown(grace); err != nil {
		log.Printf("sessiond: ws shutdown: %v", err)
	}
}
