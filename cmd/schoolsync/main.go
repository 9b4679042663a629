package main

import (
	"schoolsync-backend/cmd/schoolsync/cmd"
)

func main() {
	cmd.Execute()
}
