package main

import "github.com/redhat-et/idbind/verifier-service/cmd"

func main() {
	cmd.Execute()
}
