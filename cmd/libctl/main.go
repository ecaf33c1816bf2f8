package main

import "library-backend/cmd/libctl/commands"

func main() {
	commands.Execute()
}
