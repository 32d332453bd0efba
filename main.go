package main

import "github.com/yuchialin/cvspay/cmd"

func main() {
	cmd.Execute()
}
