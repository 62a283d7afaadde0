package main

import (
	"github.com/pixelrelay/pixelrelay-cloud/internal/cli"
)

func main() {
	cli.Execute()
}
