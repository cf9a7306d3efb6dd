package main

import "github.com/pders01/texmath/cmd"

func main() {
	cmd.Execute()
}
