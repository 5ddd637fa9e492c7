package main

import "github.com/foldlib/shadowfold/cmd"

func main() {
	cmd.Execute()
}
