// Command cascadectl is the CLI front end for the cascade engine: it can
// run a single GENERATE/MODIFY/QA/QFILE/C request to completion in-process,
// or start the Run API server and drive runs against it over HTTP.
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("cascadectl: %v", err)
	}
}
