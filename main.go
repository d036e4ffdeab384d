package main

import "github.com/GurgoSoft/MIND-sub001/cmd"

func main() {
	cmd.Execute()
}
