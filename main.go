package main

import "github.com/ValentinKolb/dctl/cmd"

func main() {
	cmd.Execute()
}
