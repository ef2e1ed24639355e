// Package main is the entry point for the weather widget.
package main

import "github.com/i474232898/weather-widget/internal/cli"

func main() {
	cli.Execute()
}
