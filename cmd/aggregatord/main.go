package main

import "github.com/lootex/aggregatord/internal/cli"

func main() {
	cli.Execute()
}
