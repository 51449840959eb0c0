package main

import "github.com/levyledger/levyd/internal/cli"

func main() {
	cli.Execute()
}
