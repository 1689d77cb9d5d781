package main

import "github.com/printhouse/orders-api/internal/cli"

func main() {
	cli.Execute()
}
