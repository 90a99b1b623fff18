package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/arthur-debert/appsweep/cmd/appsweep"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := appsweep.NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("Error: %v", err)))
		stop()
		os.Exit(1)
	}
}
