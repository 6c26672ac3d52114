package main

import "github.com/vidrelay/vidrelay/internal/cli"

func main() {
	cli.Execute()
}
