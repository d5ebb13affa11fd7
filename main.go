package main

import "portalsim/cmd"

func main() {
	cmd.Execute()
}
