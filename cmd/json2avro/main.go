// Command json2avro converts JSON records to Avro, either as a Kafka pipeline
// (json2avro pipeline) or one document at a time (json2avro convert).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
