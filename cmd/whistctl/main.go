package main

import (
	"github.com/mcoot/whistbroker/internal/cli"
)

func main() {
	cli.Execute()
}
