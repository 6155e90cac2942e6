package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kajovo/cascade/internal/capability"
	"github.com/kajovo/cascade/internal/provider"
	"github.com/kajovo/cascade/internal/transport"
)

var (
	capabilityCmd = &cobra.Command{
		Use:   "capability",
		Short: "Inspect and refresh the per-model capability cache",
	}
	capabilityProbeCmd = &cobra.Command{
		Use:   "probe [model]",
		Short: "Probe a model's optional-parameter support and cache the verdict",
		Args:  cobra.ExactArgs(1),
		Run:   runCapabilityProbeCommand,
	}
	capabilityForceRefresh bool
)

func init() {
	capabilityProbeCmd.Flags().BoolVar(&capabilityForceRefresh, "force", false, "probe even if the cached record isn't stale")
	capabilityCmd.AddCommand(capabilityProbeCmd)
}

// runCapabilityProbeCommand sends a minimal ResponseRequest exercising each
// optional parameter one at a time; a successful call marks the capability
// supported, a rejection (via ProviderError) downgrades it. Never downgrades
// a capability found supported on a noisy transport failure — only an
// explicit client-error response does that.
func runCapabilityProbeCommand(cmd *cobra.Command, args []string) {
	modelName := args[0]

	d, err := buildDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup error: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	rec, found, err := d.Capability.Get(modelName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capability lookup: %v\n", err)
		os.Exit(1)
	}
	if found && !capabilityForceRefresh && !rec.Stale(capability.DefaultTTL) {
		printRecord(rec)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	caps := rec.Capabilities
	if caps == nil {
		caps = map[string]bool{}
	}

	temp := 0.2
	_, err = d.Provider.CreateResponse(ctx, provider.ResponseRequest{Model: modelName, Input: "ping", Temperature: &temp})
	applyProbeOutcome(caps, "supports_temperature", err)

	_, err = d.Provider.CreateResponse(ctx, provider.ResponseRequest{Model: modelName, Input: "ping", VectorStoreIDs: []string{"probe"}})
	applyProbeOutcome(caps, "supports_file_search", err)

	first, err := d.Provider.CreateResponse(ctx, provider.ResponseRequest{Model: modelName, Input: "ping"})
	if err == nil {
		_, err = d.Provider.CreateResponse(ctx, provider.ResponseRequest{Model: modelName, Input: "ping again", PreviousResponseID: first.ID})
	}
	applyProbeOutcome(caps, "supports_previous_response", err)

	newRec := capability.Record{Model: modelName, Capabilities: caps}
	if err := d.Capability.Put(newRec); err != nil {
		fmt.Fprintf(os.Stderr, "capability store: %v\n", err)
		os.Exit(1)
	}
	printRecord(newRec)
}

// applyProbeOutcome records success as true, an explicit client-side
// rejection as false, and leaves an already-cached true capability
// untouched on transport noise (network/rate-limit/server errors) rather
// than flipping it on a fluke.
func applyProbeOutcome(caps map[string]bool, key string, err error) {
	if err == nil {
		caps[key] = true
		return
	}
	var perr *transport.ProviderError
	if errors.As(err, &perr) && perr.Kind == transport.KindClient {
		caps[key] = false
		return
	}
	if _, ok := caps[key]; !ok {
		caps[key] = false
	}
}

func printRecord(rec capability.Record) {
	out, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(out))
}
