package main

import "github.com/huanfeng/apk-extractor/cmd"

func main() {
	cmd.Execute()
}
