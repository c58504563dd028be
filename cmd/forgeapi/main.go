package main

import "github.com/pixelforge/forge/cmd/forgeapi/cmd"

func main() {
	cmd.Execute()
}
