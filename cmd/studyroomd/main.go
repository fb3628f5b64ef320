package main

import "github.com/studysignal/studyroomd/cmd/studyroomd/commands"

func main() {
	commands.Execute()
}
