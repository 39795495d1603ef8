package main

import "github.com/inovacc/htables/cmd"

func main() {
	cmd.Execute()
}
