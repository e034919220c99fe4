package main

import "github.com/MeKo-Tech/receiptminer/cmd/receiptminer/cmd"

func main() {
	cmd.Execute()
}
