package main

import (
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/cli"
)

func main() {
	cli.Execute()
}
