package main

import "github.com/webintel-network/webledger/internal/cli"

func main() {
	cli.Execute()
}
