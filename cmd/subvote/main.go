// Command subvote runs the vote-gated subdomain service and its operator tools.
package main

import (
	"os"

	"github.com/roach88/subvote/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
