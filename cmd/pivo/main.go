package main

import "github.com/example/pivo/cmd"

func main() {
	cmd.Execute()
}
