package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/trezcool/finadmin/apps/console/tui"
	"github.com/trezcool/finadmin/core"
	logsvc "github.com/trezcool/finadmin/services/logger"
	"github.com/trezcool/finadmin/services/restclient"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}

	apiURL := flag.String("api", conf.Console.APIBaseURL, "base URL of the API")
	username := flag.String("username", conf.Console.Username, "username or email to log in with")
	logFile := flag.String("log", "console.log", "file the console logs to")
	flag.Parse()

	// the terminal belongs to the TUI: log to a file
	f, err := tea.LogToFile(*logFile, "CONSOLE : ")
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	defer f.Close()
	logger := logsvc.NewRollbarLogger(log.Default(), conf)
	defer logger.Close()

	client := restclient.NewClient(*apiURL, nil)
	if err = login(client, *username); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	model := tui.New(tui.Options{Backend: client, Logger: logger})
	if _, err = tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		logger.Error("running console", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func login(client *restclient.Client, username string) error {
	if username == "" {
		fmt.Print("Username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return err
		}
		username = strings.TrimSpace(line)
	}
	fmt.Print("Password: ")
	pwd, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Login(ctx, username, string(pwd))
}
