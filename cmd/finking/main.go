// Command finking is the terminal client and chat backend for the FinKing
// AI investment analyst.
package main

import "github.com/siskocapital/finking/internal/commands"

func main() {
	commands.Execute()
}
