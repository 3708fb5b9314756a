package main

import "djqueue-backend/cmd"

func main() {
	cmd.Run()
}
