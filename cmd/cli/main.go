package main

import "github.com/heap-dump/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
