package main

import "github.com/Norgate-AV/incr/cmd"

func main() {
	cmd.Execute()
}
