package main

import "github.com/avolkov/plant-controller/cmd/plant-controller/cmd"

func main() {
	cmd.Execute()
}
