package main

import "clouddeploy/cmd"

func main() {
	cmd.Execute()
}
