package main

import "github.com/tessro/riffd/internal/cli"

func main() {
	cli.Execute()
}
