package main

import "github.com/clawplay/platform/cmd"

func main() {
	cmd.Execute()
}
