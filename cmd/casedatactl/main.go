// Package main provides the casedatactl CLI.
package main

import "casedata/internal/cli"

func main() {
	cli.Execute()
}
