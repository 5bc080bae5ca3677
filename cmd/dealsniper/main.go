package main

import "skinport-sniper/internal/cli"

func main() {
	cli.Execute()
}
