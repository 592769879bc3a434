package main

import "github.com/VeeLume/streamdeck-counter/cmd/streamdeck-counter/cmd"

func main() {
	cmd.Execute()
}
