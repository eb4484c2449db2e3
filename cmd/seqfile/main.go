package main

import (
	"os"

	"github.com/yhsiang/seqfile/pkg/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
