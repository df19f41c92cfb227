package main

import "github.com/appsworld/machoprot/cmd/machoprot/cmd"

func main() {
	cmd.Execute()
}
