package main

import "github.com/yassinexng/datawise/cmd"

func main() {
	cmd.Execute()
}
