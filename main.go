package main

import "botline/cmd"

func main() {
	cmd.Execute()
}
