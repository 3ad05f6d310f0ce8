package main

import "github.com/promptcut/promptcut/internal/cli"

func main() {
	cli.Main()
}
