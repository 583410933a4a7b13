// Package main is entrypoint for the application
package main

import (
	"telecall/cmd"
)

func main() {
	cmd.Run()
}
