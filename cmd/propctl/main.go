package main

import "propertyhub.org/cmd/propctl/cmd"

func main() {
	cmd.Execute()
}
