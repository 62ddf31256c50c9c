package main

import "github.com/jake-scott/contxt-cli/cmd"

func main() {
	cmd.Execute()
}
