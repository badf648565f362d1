package main

import "github.com/tanq16/xferbench/cmd"

func main() {
	cmd.Execute()
}
