// Package main provides the entry point for the ortholabel service.
package main

import (
	"log"

	"ortholabel/internal/cli"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cli.Execute()
}
