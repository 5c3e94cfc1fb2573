package main

import "github.com/stackvista/es-restore/cmd"

func main() {
	cmd.Execute()
}
