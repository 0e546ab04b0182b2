package main

import (
	"fmt"
	"os"

	"github.com/securestor/s3crypt/cmd/s3crypt/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
