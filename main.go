package main

import "github.com/ValentinKolb/dPrim/cmd"

func main() {
	cmd.Execute()
}
