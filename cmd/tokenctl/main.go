package main

import (
	"os"

	"github.com/dmitrijs2005/kiwes/internal/tokenctl"
)

func main() {
	os.Exit(tokenctl.Run(os.Args[1:], os.Stdout, os.Stderr))
}
