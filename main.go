package main

import "github.com/koeppj/mcp-server-box/cmd"

func main() {
	cmd.Execute()
}
