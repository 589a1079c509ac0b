package main

import "github.com/taskcycle/taskcycle/services/processor/cli"

func main() {
	cli.Execute()
}
