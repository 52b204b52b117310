package main

import "github.com/MeKo-Tech/gobar/cmd/gobar/cmd"

func main() {
	cmd.Execute()
}
