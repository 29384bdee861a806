package main

import "venvup/cmd"

func main() {
	cmd.Execute()
}
