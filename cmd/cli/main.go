package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/localstore"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/models"
)

// Small operator tool for inspecting and resetting the persisted storefront
// state without starting the server.
func main() {
	sessionCmd := flag.NewFlagSet("session", flag.ExitOnError)
	clearCmd := flag.NewFlagSet("clear-session", flag.ExitOnError)
	proxyCmd := flag.NewFlagSet("set-proxy", flag.ExitOnError)
	proxyEnabled := proxyCmd.Bool("enabled", true, "Route API requests through the proxy")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "session":
		sessionCmd.Parse(os.Args[2:])
		showSession()
	case "clear-session":
		clearCmd.Parse(os.Args[2:])
		clearSession()
	case "set-proxy":
		proxyCmd.Parse(os.Args[2:])
		setProxy(*proxyEnabled)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("expected 'session', 'clear-session' or 'set-proxy' subcommand")
}

func openState() *localstore.Store {
	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "./storefront.state"
	}

	state, err := localstore.Open(statePath)
	if err != nil {
		log.Fatalf("Failed to open state file: %v", err)
	}
	return state
}

func showSession() {
	state := openState()
	defer state.Close()

	token, err := state.Get(localstore.KeyToken)
	if err != nil || token == "" {
		fmt.Println("No stored session.")
		return
	}

	fmt.Printf("Token: %s...\n", truncate(token, 24))

	if rawUser, err := state.Get(localstore.KeyUser); err == nil {
		var user models.User
		if err := json.Unmarshal([]byte(rawUser), &user); err == nil {
			fmt.Printf("User: %s <%s>\n", user.Username, user.Email)
		}
	}

	if rawExp, err := state.Get(localstore.KeyExpiration); err == nil {
		if millis, err := strconv.ParseInt(rawExp, 10, 64); err == nil {
			expires := time.UnixMilli(millis)
			fmt.Printf("Expires: %s (%s)\n", expires.Format(time.RFC3339), remainingText(expires))
		}
	}

	if useProxy, err := state.Get(localstore.KeyUseProxy); err == nil {
		fmt.Printf("Proxy mode: %s\n", useProxy)
	}
}

func clearSession() {
	state := openState()
	defer state.Close()

	if err := state.Delete(localstore.KeyToken, localstore.KeyUser, localstore.KeyExpiration); err != nil {
		log.Fatalf("Failed to clear session: %v", err)
	}
	fmt.Println("Stored session cleared.")
}

func setProxy(enabled bool) {
	state := openState()
	defer state.Close()

	if err := state.Set(localstore.KeyUseProxy, strconv.FormatBool(enabled)); err != nil {
		log.Fatalf("Failed to set proxy mode: %v", err)
	}
	fmt.Printf("Proxy mode set to %v.\n", enabled)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func remainingText(expires time.Time) string {
	remaining := time.Until(expires)
	if remaining <= 0 {
		return "expired"
	}
	return "expires in " + remaining.Round(time.Second).String()
}
