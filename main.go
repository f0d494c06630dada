package main

import "github.com/lukman83/pricewatch/cmd"

func main() {
	cmd.Execute()
}
