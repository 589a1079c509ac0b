package main

import "github.com/taskcycle/taskcycle/services/api/cli"

func main() {
	cli.Execute()
}
