package main

import "shadowdeck/internal/cli"

func main() {
	cli.Execute()
}
