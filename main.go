package main

import "modloader/cmd"

func main() {
	cmd.Execute()
}
