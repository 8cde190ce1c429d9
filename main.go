package main

import "github.com/crossgrep/crossgrep/cli"

func main() {
	cli.Execute()
}
