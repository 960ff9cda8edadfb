// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"
	"os/user"

	"ssakit/repl"
)

func main() {
	name := "there"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}

	fmt.Printf("Welcome to the brainhack REPL, %s!\n", name)
	repl.Start(os.Stdin, os.Stdout, repl.Config{})
}
