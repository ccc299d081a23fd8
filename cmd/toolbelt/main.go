package main

import "toolbelt/internal/cli"

func main() {
	cli.Execute()
}
