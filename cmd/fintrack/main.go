package main

import "fintrack/cmd/fintrack/commands"

func main() {
	commands.Execute()
}
