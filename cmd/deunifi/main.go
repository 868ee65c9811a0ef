package main

import (
	"deunifi/internal/cli"
)

func main() {
	cli.Execute()
}
