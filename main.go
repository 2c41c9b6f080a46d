package main

import "github.com/teleportdao/teleswap-engine/cmd"

func main() {
	cmd.Execute()
}
