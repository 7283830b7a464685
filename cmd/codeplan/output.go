package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// printResult renders a command result. JSON format marshals the value;
// human format prints the supplied rendering.
func printResult(v interface{}, human func() string) {
	if formatFlag == "json" {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}
	fmt.Println(human())
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
