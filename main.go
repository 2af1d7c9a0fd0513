package main

import "github.com/mediamanager/mstore/cmd"

func main() {
	cmd.Execute()
}
