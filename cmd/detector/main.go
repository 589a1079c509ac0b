package main

import "github.com/taskcycle/taskcycle/services/detector/cli"

func main() {
	cli.Execute()
}
