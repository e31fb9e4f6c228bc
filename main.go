package main

import "github.com/ValentinKolb/ftsd/cmd"

func main() {
	cmd.Execute()
}
