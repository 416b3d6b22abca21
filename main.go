package main

import "github.com/g90sdr/rigbridge/cmd"

func main() {
	cmd.Execute()
}
