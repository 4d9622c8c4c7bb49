package main

import "github.com/agentic-research/facade/cmd"

func main() {
	cmd.Execute()
}
