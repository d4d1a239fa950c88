package main

import "github.com/sunbk201/xlink/cmd"

func main() {
	cmd.Execute()
}
