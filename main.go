package main

import "github.com/robmorgan/tapsync/cmd"

func main() {
	cmd.Execute()
}
