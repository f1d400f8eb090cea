package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"roomchat/internal/config"
	"roomchat/internal/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "roomchat: %v\n", err)
		os.Exit(1)
	}

	serverURL := flag.String("server", cfg.ServerURL, "WebSocket event channel URL (e.g., ws://localhost:8080/ws)")
	loginURL := flag.String("login", cfg.LoginURL, "Name registration base URL (e.g., http://localhost:8080)")
	logFile := flag.String("log", cfg.LogFile, "Log file path")
	debug := flag.Bool("debug", cfg.Debug, "Enable debug logging")
	flag.Parse()

	cfg.ServerURL = *serverURL
	cfg.LoginURL = *loginURL
	cfg.LogFile = *logFile
	cfg.Debug = *debug

	// The TUI owns the terminal, so logs go to a file.
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roomchat: failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	logger := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		Prefix:          "roomchat",
	})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	m := ui.New(cfg, logger)
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, runErr := p.Run()

	// Closing the channel is how the session leaves the room; the server
	// announces the departure to everyone else.
	m.Channel().Disconnect()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "roomchat: %v\n", runErr)
		os.Exit(1)
	}
}
