package main

import "github.com/nurjigit18/shipledger/internal/cli"

func main() {
	cli.Execute()
}
