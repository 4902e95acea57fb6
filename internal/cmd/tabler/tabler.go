// tabler regenerates the character tables in text_tables.go. Each argument
// is a name=characters pair; the resulting characterSet literals are printed
// to standard output.
package main

import (
	"fmt"
	"os"
	"strings"
)

var usage = `Usage: tabler <var>=<charset> [<var>=<charset> ...]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	for i, pair := range os.Args[1:] {
		nam, arg, ok := strings.Cut(pair, "=")
		if !ok {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(1)
		}

		var vals [4]uint64
		for _, v := range arg {
			if v > 255 {
				fmt.Fprintf(os.Stderr, "character %q is out of table range\n", v)
				os.Exit(1)
			}
			vals[v/64] |= 1 << (uint(v) % 64)
		}

		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("var %s = characterSet{\n", nam)
		for _, v := range vals {
			fmt.Printf("\t0x%16.016x,\n", v)
		}
		fmt.Printf("}\n")
	}
}
