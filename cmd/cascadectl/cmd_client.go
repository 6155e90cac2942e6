package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	cancelCmd = &cobra.Command{
		Use:   "cancel [run-id]",
		Short: "Request cooperative cancellation of a run on a running server",
		Args:  cobra.ExactArgs(1),
		Run:   runCancelCommand,
	}
	eventsCmd = &cobra.Command{
		Use:   "events [run-id]",
		Short: "Stream a run's events from a running server until it finishes",
		Args:  cobra.ExactArgs(1),
		Run:   runEventsCommand,
	}
	resumeCmd = &cobra.Command{
		Use:   "resume [run-id]",
		Short: "Resume a run from its last persisted state on a running server",
		Args:  cobra.ExactArgs(1),
		Run:   runResumeCommand,
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List every run known to a running server",
		Args:  cobra.NoArgs,
		Run:   runListCommand,
	}
	receiptsCmd = &cobra.Command{
		Use:   "receipts [run-id]",
		Short: "List cost receipts for a run from a running server",
		Args:  cobra.ExactArgs(1),
		Run:   runReceiptsCommand,
	}
)

func runCancelCommand(cmd *cobra.Command, args []string) {
	resp, err := http.Post(serverAddr+"/runs/"+args[0]+"/cancel", "application/json", nil)
	printJSONOrExit(resp, err)
}

func runResumeCommand(cmd *cobra.Command, args []string) {
	resp, err := http.Post(serverAddr+"/runs/"+args[0]+"/resume", "application/json", nil)
	printJSONOrExit(resp, err)
}

func runListCommand(cmd *cobra.Command, args []string) {
	resp, err := http.Get(serverAddr + "/runs")
	printJSONOrExit(resp, err)
}

func runReceiptsCommand(cmd *cobra.Command, args []string) {
	resp, err := http.Get(serverAddr + "/runs/" + args[0] + "/receipts")
	printJSONOrExit(resp, err)
}

func printJSONOrExit(resp *http.Response, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var pretty any
	if json.Unmarshal(body, &pretty) == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Println(string(body))
	}
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func runEventsCommand(cmd *cobra.Command, args []string) {
	wsURL := "ws" + strings.TrimPrefix(serverAddr, "http") + "/runs/" + args[0] + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		fmt.Println(string(data))
	}
}
