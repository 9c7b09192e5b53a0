package main

import "go-fontdb-pipeline/cmd/fontdb/cmd"

func main() {
	cmd.Execute()
}
