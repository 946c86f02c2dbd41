package main

import "github.com/executehouse/limpopo-connect/cmd"

func main() {
	cmd.Execute()
}
