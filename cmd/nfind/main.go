package main

import "github.com/mgomes/nestfind/internal/cli"

func main() {
	cli.Execute()
}
