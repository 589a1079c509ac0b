package main

import "github.com/taskcycle/taskcycle/services/notifier/cli"

func main() {
	cli.Execute()
}
