package main

import (
	"os"

	"ruse/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
