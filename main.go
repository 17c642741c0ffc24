package main

import "github.com/quasar/mcfleet/internal/cli"

func main() {
	cli.Execute()
}
