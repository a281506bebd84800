// Package main is the browserenv command.
package main

import "github.com/liuxd6825/browserenv/cmd"

func main() {
	cmd.Execute()
}
