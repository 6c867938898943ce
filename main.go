package main

import "github.com/druid0523/task-manager-mcp/cmd"

func main() {
	cmd.Execute()
}
