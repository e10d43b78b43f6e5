package main

import (
	"context"
	"os"

	"booklib/internal/cli"
)

func main() {
	cli.Execute(context.Background(), os.Args[1:])
}
