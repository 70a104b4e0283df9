package main

import "github.com/rpm-software-management/libdnf-sub006/internal/cli"

func main() {
	cli.Execute()
}
