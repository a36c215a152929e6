package main

import (
	"github.com/wafdrill/wafdrill/internal/cli"
)

func main() {
	cli.Execute()
}
