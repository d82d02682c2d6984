// cmd/ragline/main.go
package main

import (
	"github.com/ragline/ragline/internal/commands"
)

// main starts the ragline CLI by delegating to the cobra root command.
func main() {
	commands.Execute()
}
