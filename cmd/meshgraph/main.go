// meshgraph encodes a JSON document as an object graph on one node and
// rebuilds it on a second in-process node, printing what the receiver
// sees.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	opts, err := ParseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	os.Exit(run(opts, os.Stdin, os.Stdout))
}
