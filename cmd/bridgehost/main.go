package main

import "bridgekit/cmd/bridgehost/cmd"

func main() {
	cmd.Execute()
}
