// Package main is the entry point for the sitecrafter CLI.
package main

import "github.com/0-chirag-s/sitecrafter/cmd"

func main() {
	cmd.Execute()
}
