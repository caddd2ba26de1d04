// Package main is the entry point for the churnetl binary.
package main

import "os"

func main() {
	os.Exit(Execute())
}
