package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/veridraw/veridraw"
	"github.com/veridraw/veridraw/api"
	"github.com/veridraw/veridraw/config"
	"github.com/veridraw/veridraw/jobs"
	"github.com/veridraw/veridraw/log"
)

var (
	configFile       string
	listenAddress    string
	logLevel         string
	printVersion     bool
	printStackOnExit bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "path to a yaml configuration file")
	flag.StringVar(&listenAddress, "listen", "", "override the api listen address")
	flag.StringVar(&logLevel, "log", "info", "log level: trace, debug, info, warning, error, critical")
	flag.BoolVar(&printVersion, "version", false, "print version and exit")
	flag.BoolVar(&printStackOnExit, "print-stack-on-exit", false, "prints the stack before shutting down")
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if printVersion {
		fmt.Println("veridraw", veridraw.Version)
		return 0
	}

	log.SetLogLevel(log.ParseLevel(logLevel))
	if err := log.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start logging: %s\n", err)
		return 1
	}
	defer log.Shutdown()

	if configFile != "" {
		if err := config.LoadFile(configFile); err != nil {
			log.Criticalf("main: failed to load config %s: %s", configFile, err)
			return 1
		}
	}
	if listenAddress != "" {
		if err := config.SetConfigOption("api/listen_address", listenAddress); err != nil {
			log.Criticalf("main: invalid listen address %q: %s", listenAddress, err)
			return 1
		}
	}

	orchestrator := jobs.NewOrchestrator()
	server := api.NewServer(orchestrator)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(
		signalCh,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	exitCode := 0
	select {
	case sig := <-signalCh:
		fmt.Println(" <INTERRUPT>")
		log.Warningf("main: received %s, shutting down", sig)
	case err := <-serveErr:
		if err != nil {
			log.Criticalf("main: api server failed: %s", err)
			exitCode = 1
		}
	}

	if printStackOnExit {
		printStackTo(os.Stdout)
	}

	// a second signal during shutdown forces exit
	go func() {
		<-signalCh
		fmt.Fprintln(os.Stderr, "===== FORCED EXIT =====")
		printStackTo(os.Stderr)
		os.Exit(1)
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("main: api shutdown: %s", err)
	}
	orchestrator.Shutdown()
	log.Info("main: shutdown complete")
	return exitCode
}

func printStackTo(writer io.Writer) {
	fmt.Fprintln(writer, "=== GOROUTINES ===")
	_ = pprof.Lookup("goroutine").WriteTo(writer, 1)
}
