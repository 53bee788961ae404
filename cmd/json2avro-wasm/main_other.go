//go:build !wasip1

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "json2avro-wasm runs inside Redpanda; build it with GOOS=wasip1 GOARCH=wasm")
	os.Exit(1)
}
