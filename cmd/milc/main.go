package main

import (
	"os"

	"milc/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
