package main

import (
	"github.com/im-anant/streeem/internal/cli"
	"github.com/im-anant/streeem/internal/logging"
)

func main() {
	logging.Init()
	cli.Execute()
}
