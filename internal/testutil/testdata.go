// Package testutil loads fixtures shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"

	json "github.com/goccy/go-json"
)

// ReadFile returns the contents of a fixture stored next to this file.
func ReadFile(filename string) ([]byte, error) {
	_, currentFile, _, _ := runtime.Caller(0)
	dir := filepath.Dir(currentFile)

	return os.ReadFile(filepath.Join(dir, filename))
}

// LoadJSON reads and unmarshals a JSON fixture. If target is provided, it attempts to unmarshal the JSON into the target.
func LoadJSON(filename string, target ...any) (map[string]any, error) {
	var result map[string]any

	data, err := ReadFile(filename)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(data, &result)
	if err != nil {
		return nil, err
	}

	if len(target) > 0 && target[0] != nil {
		err = json.Unmarshal(data, target[0])
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// InteropSchema returns the Avro interop schema fixture.
func InteropSchema() string {
	b, err := ReadFile("interop.avsc")
	if err != nil {
		panic(err)
	}
	return string(b)
}

// InteropPayload returns a JSON document conforming to InteropSchema.
func InteropPayload() []byte {
	b, err := ReadFile("interop.json")
	if err != nil {
		panic(err)
	}
	return b
}
